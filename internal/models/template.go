package models

// OutputKind identifies one normalized output view of a statement file.
type OutputKind string

const (
	KindCommission OutputKind = "commission"
	KindChargeback OutputKind = "chargeback"
	KindAdjustment OutputKind = "adjustment"
)

// OutputKinds lists every known kind in declaration order. Fan-out results
// and UI listings follow this order, so it must stay stable.
var OutputKinds = []OutputKind{KindCommission, KindChargeback, KindAdjustment}

// Valid reports whether k is a known output kind.
func (k OutputKind) Valid() bool {
	for _, known := range OutputKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Template is a fixed canonical column layout that source files are mapped
// into. Field names are unique and their order drives export column order.
type Template struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// PolicyAndTransactions is the commission template every carrier statement
// is normalized into.
var PolicyAndTransactions = Template{
	Name: "Policy And Transactions",
	Fields: []string{
		"PolicyNo", "PHFirst", "PHLast", "Status", "Issuer", "State",
		"ProductType", "PlanName", "SubmittedDate", "EffectiveDate",
		"TermDate", "PaySched", "PayCode", "WritingAgentID", "Premium",
		"CommPrem", "TranDate", "CommReceived", "PTD", "NoPayMon",
		"MemberCount", "Note",
	},
}

// CommissionChargebacks is the template for chargeback/lapse reports.
var CommissionChargebacks = Template{
	Name: "Commission Chargebacks",
	Fields: []string{
		"PolicyNo", "Issuer", "CancelDate", "ProcessDate", "PolicyStatus",
		"Note",
	},
}

// AgentAdjustments is the template for agent fee/adjustment reports.
var AgentAdjustments = Template{
	Name: "Agent Adjustments",
	Fields: []string{
		"AgentNPN", "ProcessDate", "Description", "PolicyNo", "UnitPrice",
		"Quantity", "Total", "ApplyToNet", "ApplyToForm1099",
		"ApplyToAgentBalance", "Note",
	},
}

// TemplateFor returns the canonical template targeted by an output kind.
func TemplateFor(kind OutputKind) Template {
	switch kind {
	case KindChargeback:
		return CommissionChargebacks
	case KindAdjustment:
		return AgentAdjustments
	default:
		return PolicyAndTransactions
	}
}

// HasField reports whether the template contains the named canonical field.
func (t Template) HasField(name string) bool {
	for _, f := range t.Fields {
		if f == name {
			return true
		}
	}
	return false
}
