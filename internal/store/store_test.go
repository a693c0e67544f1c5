package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insuranceops/commission-processor/internal/models"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "carriers.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]Store{
		"sqlite": sq,
		"memory": NewMemory(0),
	}
}

func TestFingerprintNormalizesOrderAndCase(t *testing.T) {
	a := Fingerprint([]string{"Policy No", "Premium", "Agent"})
	b := Fingerprint([]string{" agent", "PREMIUM", "policy no "})
	assert.Equal(t, a, b)

	c := Fingerprint([]string{"Policy No", "Premium"})
	assert.NotEqual(t, a, c)
}

func TestRegisterRequiresName(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register("  ", []string{"A"}, "", models.KindCommission, "")
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestRegisterIsIdempotentForSameLayout(t *testing.T) {
	cols := []string{"Policy #", "First", "Last", "Prem Amt"}

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register("Acme", cols, "", models.KindCommission, "")
			require.NoError(t, err)

			p, err := s.Register("Acme", cols, "", models.KindCommission, "")
			require.NoError(t, err)

			require.Len(t, p.Fingerprints, 1)
			assert.Equal(t, Fingerprint(cols), p.Fingerprints[0].Signature)
			assert.Equal(t, 2, p.FileCount)
		})
	}
}

func TestRegisterAccumulatesLayoutVariants(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register("Acme", []string{"Policy #", "Premium"}, "", models.KindCommission, "")
			require.NoError(t, err)

			p, err := s.Register("Acme", []string{"Policy Number", "Premium", "State"}, "", models.KindCommission, "")
			require.NoError(t, err)
			assert.Len(t, p.Fingerprints, 2)
		})
	}
}

func TestLookupByNameIsCaseInsensitive(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register("Manhattan Life", []string{"Policy"}, "", models.KindCommission, "manhattanlife")
			require.NoError(t, err)

			p, err := s.LookupByName("MANHATTAN LIFE")
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, "Manhattan Life", p.Name)
			assert.True(t, p.HasTransformer())

			miss, err := s.LookupByName("Unknown Mutual")
			require.NoError(t, err)
			assert.Nil(t, miss)
		})
	}
}

func TestLookupByLayoutExactMatch(t *testing.T) {
	cols := []string{"Policy #", "First", "Last", "Prem Amt"}

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register("Acme", cols, "", models.KindCommission, "")
			require.NoError(t, err)

			// Same layout, different order and casing.
			p, err := s.LookupByLayout([]string{"prem amt", "POLICY #", "Last", "First"}, "")
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, "Acme", p.Name)
		})
	}
}

func TestLookupByLayoutToleratesHeaderDrift(t *testing.T) {
	stored := []string{"Policy", "First", "Last", "Premium", "State", "Agent", "Plan", "Status", "Tran Date", "Commission"}

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register("Acme", stored, "", models.KindCommission, "")
			require.NoError(t, err)

			// One renamed column out of ten: 90% overlap, above threshold.
			drifted := append([]string(nil), stored...)
			drifted[9] = "Comm Paid"
			p, err := s.LookupByLayout(drifted, "")
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, "Acme", p.Name)

			// A completely different layout stays unrecognized.
			miss, err := s.LookupByLayout([]string{"Invoice", "Due Date", "Balance"}, "")
			require.NoError(t, err)
			assert.Nil(t, miss)
		})
	}
}

func TestFilenamePatternStripsDatesAndExtension(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"acme_commissions_2024-01-31.csv", "acme_commissions"},
		{"acme_commissions_01_31_2024.xlsx", "acme_commissions"},
		{"ML_Statement.xml", "ML_Statement"},
		{"2024-01-31.csv", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := FilenamePattern(c.in); got != c.want {
			t.Errorf("FilenamePattern(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLookupByLayoutFallsBackToFilenamePattern(t *testing.T) {
	stored := []string{"Policy", "First", "Last", "Premium"}

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register("Acme", stored, "acme_commissions_2024-01-31.csv", models.KindCommission, "")
			require.NoError(t, err)

			// Layout changed completely, but next month's file keeps the
			// recurring name part.
			p, err := s.LookupByLayout([]string{"Contract", "Holder", "Amt Due"}, "ACME_Commissions_2024-02-29.csv")
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, "Acme", p.Name)
			assert.Equal(t, []string{"acme_commissions"}, p.FilenamePatterns)

			// An unrelated name with an unrelated layout stays unknown.
			miss, err := s.LookupByLayout([]string{"Contract", "Holder", "Amt Due"}, "globex_2024-02-29.csv")
			require.NoError(t, err)
			assert.Nil(t, miss)
		})
	}
}

func TestFilenamePatternBeatsColumnOverlap(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register("Acme", []string{"Policy", "First", "Last", "Premium", "State"}, "acme_monthly.csv", models.KindCommission, "")
			require.NoError(t, err)
			_, err = s.Register("Globex", []string{"Policy", "First", "Last", "Premium", "Agent"}, "globex_monthly.csv", models.KindCommission, "")
			require.NoError(t, err)

			// The columns overlap Globex's layout (4 of 5) and not
			// Acme's (3 of 5), but the filename names Acme; the pattern
			// tier runs before overlap.
			p, err := s.LookupByLayout([]string{"Policy", "First", "Last", "Agent", "Region"}, "acme_monthly_2024-03-31.csv")
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, "Acme", p.Name)
		})
	}
}

func TestExactOnlyRecognitionWhenThresholdIsOne(t *testing.T) {
	s := NewMemory(1.0)
	stored := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	_, err := s.Register("Acme", stored, "", models.KindCommission, "")
	require.NoError(t, err)

	drifted := append([]string(nil), stored[:9]...)
	drifted = append(drifted, "K")
	p, err := s.LookupByLayout(drifted, "")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestConcurrentRegistrationConverges(t *testing.T) {
	cols := []string{"Policy #", "Premium"}

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			done := make(chan error, 8)
			for i := 0; i < 8; i++ {
				go func() {
					_, err := s.Register("Acme", cols, "", models.KindCommission, "")
					done <- err
				}()
			}
			for i := 0; i < 8; i++ {
				require.NoError(t, <-done)
			}

			names, err := s.ListKnownNames()
			require.NoError(t, err)
			assert.Equal(t, []string{"Acme"}, names)

			p, err := s.LookupByName("Acme")
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Len(t, p.Fingerprints, 1)
		})
	}
}

func TestImportLogRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, batch := range []string{"aaa111", "bbb222"} {
				err := s.LogImport(models.ImportLog{
					BatchID:       batch,
					Carrier:       "Acme",
					FileName:      "statement.csv",
					FileType:      models.KindCommission,
					Source:        "api",
					RowsProcessed: 10,
					RowsExported:  9,
					Status:        "completed",
					StartedAt:     now,
					CompletedAt:   now,
				})
				require.NoError(t, err)
			}

			logs, err := s.ImportHistory(10)
			require.NoError(t, err)
			require.Len(t, logs, 2)
			assert.Equal(t, "bbb222", logs[0].BatchID, "newest first")
			assert.Equal(t, 9, logs[0].RowsExported)
		})
	}
}
