package transform

import (
	"strings"
	"testing"

	"github.com/insuranceops/commission-processor/internal/models"
)

func newTestConfigSet(t *testing.T) *ConfigSet {
	t.Helper()
	cs, err := LoadConfigs(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return cs
}

func fieldValue(t *testing.T, tbl models.Table, row int, field string) string {
	t.Helper()
	i := tbl.ColumnIndex(field)
	if i < 0 {
		t.Fatalf("field %q not in output columns", field)
	}
	return tbl.Rows[row][i]
}

func TestManhattanLife_CommissionTransform(t *testing.T) {
	ml := &ManhattanLife{cfg: newTestConfigSet(t)}

	src := models.Table{
		Columns: []string{"Group No.", "Owner Name", "Payment Date", "Paid To Date", "Issue Date", "Premium", "Commission", "Advance Repay", "Issue State", "Plan Description", "Writing Agent"},
		Rows: [][]string{
			{"G100", "SMITH JOHN", "01/15/2024", "02/01/2024", "2023-06-09", "85.00", "12.75", "0.00", "TX", "LUMP SUM CANCER", "WA42"},
			{"G101", "DOE JANE", "01/15/2024", "02/01/2024", "2023-07-01", "40.00", "0.00", "6.50", "FL", "HOSPITAL INDEMNITY SELECT", "WA42"},
		},
	}

	out, warnings, err := ml.Transform(models.KindCommission, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(out.Rows))
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	checks := []struct {
		field string
		want  string
	}{
		{"PolicyNo", "G100"},
		{"PHFirst", ""},
		{"PHLast", "SMITH JOHN"},
		{"Status", "Active"},
		{"Issuer", "Manhattan Life"},
		{"State", "TX"},
		{"ProductType", "Critical Illness"},
		{"PlanName", "Cancer, Heart Attack, Stroke"},
		{"SubmittedDate", "6/9/2023"},
		{"EffectiveDate", "6/9/2023"},
		{"PaySched", "Monthly"},
		{"PayCode", "Default"},
		{"WritingAgentID", "WA42"},
		{"Premium", "85.00"},
		{"CommPrem", "85.00"},
		{"TranDate", "1/15/2024"},
		{"CommReceived", "12.75"},
		{"PTD", "2/1/2024"},
		{"NoPayMon", "1"},
		{"Note", "LUMP SUM CANCER"},
	}
	for _, c := range checks {
		if got := fieldValue(t, out, 0, c.field); got != c.want {
			t.Errorf("%s: got %q, want %q", c.field, got, c.want)
		}
	}

	// Zero commission falls back to the advance repayment.
	if got := fieldValue(t, out, 1, "CommReceived"); got != "6.50" {
		t.Errorf("CommReceived fallback: got %q, want %q", got, "6.50")
	}
}

func TestManhattanLife_UnknownPlanProducesWarnings(t *testing.T) {
	ml := &ManhattanLife{cfg: newTestConfigSet(t)}

	src := models.Table{
		Columns: []string{"Group No.", "Owner Name", "Plan Description", "Premium", "Commission", "Advance Repay"},
		Rows: [][]string{
			{"G1", "A", "MYSTERY PLAN 3000", "10", "1", "0"},
			{"G2", "B", "MYSTERY PLAN 3000", "10", "1", "0"},
		},
	}

	out, warnings, err := ml.Transform(models.KindCommission, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fieldValue(t, out, 0, "ProductType"); got != "" {
		t.Errorf("ProductType: got %q, want empty", got)
	}

	// One warning per lookup table, deduplicated across rows.
	if len(warnings) != 2 {
		t.Fatalf("warnings: got %v, want 2 entries", warnings)
	}
	for _, w := range warnings {
		if !strings.Contains(w, "MYSTERY PLAN 3000") {
			t.Errorf("warning %q does not name the plan", w)
		}
	}
}

func TestManhattanLife_ChargebackTransform(t *testing.T) {
	ml := &ManhattanLife{cfg: newTestConfigSet(t)}

	src := models.Table{
		Columns: []string{"Policy Owner Name", "Policy Number", "# of Days Lapsed", "Paid To Date"},
		Rows: [][]string{
			{"SMITH JOHN", "P900", "45", "03/10/2024"},
		},
	}

	out, warnings, err := ml.Transform(models.KindChargeback, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if warnings != nil {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	checks := []struct {
		field string
		want  string
	}{
		{"PolicyNo", "P900"},
		{"Issuer", "Manhattan Life"},
		{"CancelDate", "3/10/2024"},
		{"ProcessDate", "3/10/2024"},
		{"PolicyStatus", "Chargeback"},
		{"Note", ""},
	}
	for _, c := range checks {
		if got := fieldValue(t, out, 0, c.field); got != c.want {
			t.Errorf("%s: got %q, want %q", c.field, got, c.want)
		}
	}
}

func TestManhattanLife_Availability(t *testing.T) {
	ml := &ManhattanLife{cfg: newTestConfigSet(t)}

	commissionCols := []string{"Record Type", "Group No.", "Policy", "Owner Name", "Premium"}
	chargebackCols := []string{"Policy Owner Name", "Policy Number", "# of Days Lapsed"}
	unrelatedCols := []string{"Invoice", "Due Date"}

	tests := []struct {
		kind    models.OutputKind
		columns []string
		want    bool
	}{
		{models.KindCommission, commissionCols, true},
		{models.KindCommission, chargebackCols, false},
		{models.KindChargeback, chargebackCols, true},
		{models.KindChargeback, commissionCols, false},
		{models.KindCommission, unrelatedCols, false},
		// Two of four identifier columns is exactly the 50% bar.
		{models.KindCommission, []string{"Record Type", "Group No."}, true},
		// An adjustment view is not configured for this carrier.
		{models.KindAdjustment, commissionCols, false},
	}
	for _, tt := range tests {
		got, err := ml.Available(tt.kind, tt.columns)
		if err != nil {
			t.Fatalf("Available(%s): %v", tt.kind, err)
		}
		if got != tt.want {
			t.Errorf("Available(%s, %v): got %v, want %v", tt.kind, tt.columns, got, tt.want)
		}
	}
}

func TestDetectFileType(t *testing.T) {
	cs := newTestConfigSet(t)

	kind, ok := cs.DetectFileType("manhattan life", []string{"Record Type", "Group No.", "Policy", "Owner Name"})
	if !ok || kind != models.KindCommission {
		t.Errorf("got %v ok=%v, want commission", kind, ok)
	}

	kind, ok = cs.DetectFileType("Manhattan Life", []string{"Policy Owner Name", "Policy Number", "# of Days Lapsed"})
	if !ok || kind != models.KindChargeback {
		t.Errorf("got %v ok=%v, want chargeback", kind, ok)
	}

	if _, ok := cs.DetectFileType("Unknown Carrier", []string{"A"}); ok {
		t.Error("expected no detection for unknown carrier")
	}
}

func TestReformatDate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"01/15/2024", "1/15/2024"},
		{"2024-01-05", "1/5/2024"},
		{"1/5/2024", "1/5/2024"},
		{"", ""},
		{"not a date", "not a date"},
	}
	for _, tt := range tests {
		if got := reformatDate(tt.in); got != tt.want {
			t.Errorf("reformatDate(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindColumnTriesVariationsInOrder(t *testing.T) {
	tests := []struct {
		name       string
		columns    []string
		variations []string
		want       string
	}{
		{"exact first variation", []string{"Premium", "Commission"}, []string{"Premium"}, "Premium"},
		{"containment", []string{"Total Premium Amt"}, []string{"Premium"}, "Total Premium Amt"},
		{"trims header whitespace", []string{" Premium "}, []string{"Premium"}, " Premium "},
		// An earlier variation's containment hit wins over a later
		// variation's exact hit.
		{"earlier variation wins", []string{"PTD", "Paid To Date"}, []string{"Paid To", "PTD"}, "Paid To Date"},
		{"no variation present", []string{"Agent", "State"}, []string{"Premium", "Prem"}, ""},
	}
	for _, tt := range tests {
		if got := findColumn(tt.columns, tt.variations); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1,234.56", 1234.56},
		{"$85.00", 85},
		{"(12.50)", -12.50},
		{"", 0},
		{"-", 0},
	}
	for _, tt := range tests {
		got, err := parseAmount(tt.in)
		if err != nil {
			t.Fatalf("parseAmount(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseAmount(%q): got %f, want %f", tt.in, got, tt.want)
		}
	}
}
