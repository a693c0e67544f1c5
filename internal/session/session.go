// Package session drives one upload through carrier confirmation, mapping
// or transformer resolution, and processing. The session is an explicit
// value passed between steps, so each transition is testable in isolation.
package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/insuranceops/commission-processor/internal/matcher"
	"github.com/insuranceops/commission-processor/internal/models"
	"github.com/insuranceops/commission-processor/internal/store"
	"github.com/insuranceops/commission-processor/internal/transform"
)

// State is the session's position in the upload workflow.
type State string

const (
	StateUploaded         State = "uploaded"
	StateCarrierPending   State = "carrier_pending"
	StateCarrierConfirmed State = "carrier_confirmed"
	StateResolved         State = "resolved"
	StateProcessed        State = "processed"
)

// Session is the per-upload reconciliation state. Operations are sequenced;
// a session is never mutated concurrently.
type Session struct {
	ID               string
	SavedFilename    string
	OriginalFilename string
	Columns          []string
	RowCount         int

	// Set during recognition / confirmation.
	RecognizedCarrier string
	Carrier           string
	FileType          models.OutputKind

	// Exactly one of these paths is active after Resolve.
	HasTransformer bool
	Mapping        models.FieldMapping
	Outputs        []models.OutputSpec

	state State

	store    store.Store
	registry *transform.Registry
}

// New creates a session for an accepted upload.
func New(st store.Store, reg *transform.Registry, savedFilename, originalFilename string, columns []string, rowCount int) (*Session, error) {
	if len(columns) == 0 {
		return nil, &models.ValidationError{Msg: "upload has no columns"}
	}
	return &Session{
		ID:               uuid.NewString()[:8],
		SavedFilename:    savedFilename,
		OriginalFilename: originalFilename,
		Columns:          columns,
		RowCount:         rowCount,
		state:            StateUploaded,
		store:            st,
		registry:         reg,
	}, nil
}

// State returns the current workflow state.
func (s *Session) State() State { return s.state }

// Recognize looks the column layout up in the carrier store and surfaces
// the result for operator confirmation. A lookup failure is reported but
// still moves the session to carrier selection: the operator can always
// name the carrier by hand.
func (s *Session) Recognize() (string, error) {
	if s.state != StateUploaded {
		return "", s.stateError("recognize", StateUploaded)
	}
	s.state = StateCarrierPending

	profile, err := s.store.LookupByLayout(s.Columns, s.OriginalFilename)
	if err != nil {
		return "", err
	}
	if profile != nil {
		s.RecognizedCarrier = profile.Name
		if profile.FileType != "" {
			s.FileType = profile.FileType
		}
	}
	return s.RecognizedCarrier, nil
}

// ConfirmCarrier records the operator's carrier decision: the recognized
// name accepted as-is, an existing name picked from the list, or a new
// name with its file type.
func (s *Session) ConfirmCarrier(name string, fileType models.OutputKind) error {
	if s.state != StateCarrierPending {
		return s.stateError("confirm carrier", StateCarrierPending)
	}
	if name == "" {
		return &models.ValidationError{Msg: "carrier name must not be empty"}
	}
	if fileType != "" && !fileType.Valid() {
		return &models.ValidationError{Msg: fmt.Sprintf("unknown file type %q", fileType)}
	}
	s.Carrier = name
	if fileType != "" {
		s.FileType = fileType
	}
	if s.FileType == "" {
		s.FileType = models.KindCommission
	}
	s.state = StateCarrierConfirmed
	return nil
}

// Resolve registers the confirmed carrier/layout pair and determines the
// processing path: transformer fan-out or matcher-proposed field mapping.
// Any store or registry failure leaves the session at carrier-confirmed so
// the operator can retry; it is never treated as "no transformer".
func (s *Session) Resolve() error {
	if s.state != StateCarrierConfirmed {
		return s.stateError("resolve", StateCarrierConfirmed)
	}

	profile, err := s.store.Register(s.Carrier, s.Columns, s.OriginalFilename, s.FileType, s.registry.KeyFor(s.Carrier))
	if err != nil {
		return err
	}

	if profile.HasTransformer() {
		s.HasTransformer = true
		s.Outputs = transform.ResolveOutputs(s.registry, profile, s.Columns)
		s.Mapping = nil
	} else {
		s.HasTransformer = false
		s.Outputs = nil
		s.Mapping = matcher.AutoMap(models.TemplateFor(s.FileType).Fields, s.Columns)
	}

	s.state = StateResolved
	return nil
}

// OverrideMapping replaces the proposed field mapping with the operator's
// choices. The override is passed through to export untouched; no
// re-matching happens afterwards.
func (s *Session) OverrideMapping(mapping models.FieldMapping) error {
	if s.state != StateResolved {
		return s.stateError("override mapping", StateResolved)
	}
	if s.HasTransformer {
		return &models.ValidationError{Msg: "carrier has a transformer; manual mapping does not apply"}
	}
	if err := mapping.Validate(models.TemplateFor(s.FileType), s.Columns); err != nil {
		return err
	}
	s.Mapping = mapping
	return nil
}

// MarkProcessed finalizes the session after export generation.
func (s *Session) MarkProcessed() error {
	if s.state != StateResolved {
		return s.stateError("mark processed", StateResolved)
	}
	s.state = StateProcessed
	return nil
}

// Reprocess returns a fresh session over the same upload. The finished
// session is left untouched.
func (s *Session) Reprocess() (*Session, error) {
	if s.state != StateProcessed {
		return nil, s.stateError("reprocess", StateProcessed)
	}
	return New(s.store, s.registry, s.SavedFilename, s.OriginalFilename, s.Columns, s.RowCount)
}

func (s *Session) stateError(op string, want State) error {
	return &models.ValidationError{
		Msg: fmt.Sprintf("cannot %s in state %q (requires %q)", op, s.state, want),
	}
}
