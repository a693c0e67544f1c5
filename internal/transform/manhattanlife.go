package transform

import (
	"fmt"

	"github.com/insuranceops/commission-processor/internal/models"
)

// ManhattanLife transforms Manhattan Life statement files. Commission
// statements map into the Policy And Transactions template; lapse reports
// map into the Commission Chargebacks template.
type ManhattanLife struct {
	cfg *ConfigSet
}

const manhattanLifeName = "Manhattan Life"

func (t *ManhattanLife) Carrier() string { return manhattanLifeName }
func (t *ManhattanLife) Key() string     { return "manhattanlife" }

func (t *ManhattanLife) Kinds() []models.OutputKind {
	return []models.OutputKind{models.KindCommission, models.KindChargeback}
}

// Available checks the file's columns against the identifier columns
// configured for the kind: half or more present means the file carries that
// view's data.
func (t *ManhattanLife) Available(kind models.OutputKind, columns []string) (bool, error) {
	cfg, ok := t.cfg.Carrier(manhattanLifeName)
	if !ok {
		return false, &models.TransformerUnavailableError{Carrier: manhattanLifeName, Err: fmt.Errorf("carrier config missing")}
	}
	ft, ok := cfg.FileTypes[kind]
	if !ok {
		return false, nil
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[normalizeHeader(c)] = true
	}
	matches := 0
	for _, id := range ft.IdentifierColumns {
		if present[normalizeHeader(id)] {
			matches++
		}
	}
	return len(ft.IdentifierColumns) > 0 && matches*2 >= len(ft.IdentifierColumns), nil
}

func (t *ManhattanLife) Transform(kind models.OutputKind, src models.Table) (models.Table, []string, error) {
	switch kind {
	case models.KindCommission:
		return t.transformCommission(src)
	case models.KindChargeback:
		return t.transformChargeback(src)
	default:
		return models.Table{}, nil, &models.ValidationError{Msg: fmt.Sprintf("unknown file type %q for %s", kind, manhattanLifeName)}
	}
}

// Header variations Manhattan Life has shipped across statement periods.
var mlCommissionColumns = map[string][]string{
	"group_no":         {"Group No.", "Bill Ctrl/", "Group No"},
	"owner_name":       {"Owner Name", "Owner"},
	"payment_date":     {"Payment Date", "Payment"},
	"ptd":              {"Paid To Date", "PTD", "Paid To"},
	"issue_date":       {"Issue Date", "Issue"},
	"premium":          {"Premium"},
	"commission":       {"Commission"},
	"advance_repay":    {"Advance Repay", "Advance"},
	"issue_state":      {"Issue State", "Issue"},
	"plan_description": {"Plan Description", "Plan Desc"},
	"writing_agent":    {"Writing Agent"},
}

func (t *ManhattanLife) transformCommission(src models.Table) (models.Table, []string, error) {
	cols := map[string]string{}
	for key, variations := range mlCommissionColumns {
		cols[key] = findColumn(src.Columns, variations)
	}

	warnings := newWarningSet()
	out := models.Table{Columns: models.PolicyAndTransactions.Fields}

	for i := range src.Rows {
		plan := src.Cell(i, cols["plan_description"])

		productType, ok := t.cfg.Lookup(manhattanLifeName, "plan_to_product_type", plan)
		if !ok && plan != "" {
			warnings.add(fmt.Sprintf("no product type mapping for plan %q", plan))
		}
		planName, ok := t.cfg.Lookup(manhattanLifeName, "plan_to_plan_name", plan)
		if !ok && plan != "" {
			warnings.add(fmt.Sprintf("no plan name mapping for plan %q", plan))
		}

		// Commission when nonzero, otherwise the advance repayment.
		commReceived := src.Cell(i, cols["commission"])
		if amt, err := parseAmount(commReceived); err != nil || amt == 0 {
			commReceived = src.Cell(i, cols["advance_repay"])
		}

		premium := src.Cell(i, cols["premium"])
		issueDate := reformatDate(src.Cell(i, cols["issue_date"]))

		out.Rows = append(out.Rows, []string{
			src.Cell(i, cols["group_no"]),      // PolicyNo
			"",                                 // PHFirst
			src.Cell(i, cols["owner_name"]),    // PHLast
			"Active",                           // Status
			manhattanLifeName,                  // Issuer
			src.Cell(i, cols["issue_state"]),   // State
			productType,                        // ProductType
			planName,                           // PlanName
			issueDate,                          // SubmittedDate
			issueDate,                          // EffectiveDate
			"",                                 // TermDate
			"Monthly",                          // PaySched
			"Default",                          // PayCode
			src.Cell(i, cols["writing_agent"]), // WritingAgentID
			premium,                            // Premium
			premium,                            // CommPrem
			reformatDate(src.Cell(i, cols["payment_date"])), // TranDate
			commReceived,                          // CommReceived
			reformatDate(src.Cell(i, cols["ptd"])), // PTD
			"1",                                   // NoPayMon
			"",                                    // MemberCount
			plan,                                  // Note
		})
	}

	return out, warnings.list(), nil
}

var mlChargebackColumns = map[string][]string{
	"policy_number": {"Policy Number", "Policy No", "PolicyNo"},
	"paid_to_date":  {"Paid To Date", "PTD"},
}

func (t *ManhattanLife) transformChargeback(src models.Table) (models.Table, []string, error) {
	cols := map[string]string{}
	for key, variations := range mlChargebackColumns {
		cols[key] = findColumn(src.Columns, variations)
	}

	out := models.Table{Columns: models.CommissionChargebacks.Fields}
	for i := range src.Rows {
		ptd := reformatDate(src.Cell(i, cols["paid_to_date"]))
		out.Rows = append(out.Rows, []string{
			src.Cell(i, cols["policy_number"]), // PolicyNo
			manhattanLifeName,                  // Issuer
			ptd,                                // CancelDate
			ptd,                                // ProcessDate
			"Chargeback",                       // PolicyStatus
			"",                                 // Note
		})
	}
	return out, nil, nil
}

// warningSet deduplicates warnings while preserving first-seen order.
type warningSet struct {
	seen  map[string]bool
	order []string
}

func newWarningSet() *warningSet {
	return &warningSet{seen: map[string]bool{}}
}

func (w *warningSet) add(msg string) {
	if !w.seen[msg] {
		w.seen[msg] = true
		w.order = append(w.order, msg)
	}
}

func (w *warningSet) list() []string { return w.order }
