package transform

import (
	"log"

	"github.com/insuranceops/commission-processor/internal/models"
)

var kindDisplayNames = map[models.OutputKind]string{
	models.KindCommission: "Commission Statement",
	models.KindChargeback: "Chargebacks",
	models.KindAdjustment: "Adjustments",
}

// SpecFor builds the OutputSpec for one output kind.
func SpecFor(kind models.OutputKind) models.OutputSpec {
	name, ok := kindDisplayNames[kind]
	if !ok {
		name = string(kind)
	}
	return models.OutputSpec{
		Kind:     kind,
		Name:     name,
		Template: models.TemplateFor(kind).Name,
	}
}

// DefaultSpec is the fallback output for a carrier when availability cannot
// be determined: the carrier's declared file type, or commission when none
// is declared.
func DefaultSpec(profile *models.CarrierProfile) models.OutputSpec {
	kind := models.KindCommission
	if profile != nil && profile.FileType != "" {
		kind = profile.FileType
	}
	return SpecFor(kind)
}

// ResolveOutputs determines which output views the carrier's transformer
// can produce for this specific file, in transformer declaration order.
// Zero applicable outputs is a valid, empty result. If availability cannot
// be checked — the transformer is missing or a check fails — the resolver
// degrades to the single default output rather than blocking the session.
func ResolveOutputs(reg *Registry, profile *models.CarrierProfile, columns []string) []models.OutputSpec {
	if !profile.HasTransformer() {
		return nil
	}

	t, ok := reg.Lookup(profile.Transformer)
	if !ok {
		log.Printf("transformer %q for carrier %q not registered, falling back to %s output",
			profile.Transformer, profile.Name, DefaultSpec(profile).Kind)
		return []models.OutputSpec{DefaultSpec(profile)}
	}

	specs := []models.OutputSpec{}
	for _, kind := range t.Kinds() {
		available, err := t.Available(kind, columns)
		if err != nil {
			log.Printf("availability check for %s/%s failed (%v), falling back to %s output",
				profile.Name, kind, err, DefaultSpec(profile).Kind)
			return []models.OutputSpec{DefaultSpec(profile)}
		}
		if available {
			specs = append(specs, SpecFor(kind))
		}
	}
	return specs
}
