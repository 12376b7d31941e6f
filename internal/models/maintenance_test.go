package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaintenanceRecord_MatchesRule(t *testing.T) {
	oil := MaintenanceRule{ID: "rule-oil", Name: "VIDANGE"}
	ruleID := "rule-oil"
	otherID := "rule-brake"

	tests := []struct {
		name   string
		record MaintenanceRecord
		want   bool
	}{
		{"rule reference matches", MaintenanceRecord{RuleID: &ruleID, Description: "renamed"}, true},
		{"rule reference wins over label", MaintenanceRecord{RuleID: &otherID, Description: "VIDANGE"}, false},
		{"label fallback matches", MaintenanceRecord{Description: "VIDANGE"}, true},
		{"empty reference falls back to label", MaintenanceRecord{RuleID: new(string), Description: "VIDANGE"}, true},
		{"label fallback mismatch", MaintenanceRecord{Description: "PATIN FREIN"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.MatchesRule(oil))
		})
	}
}

func TestMaintenanceStatus_IsPending(t *testing.T) {
	assert.True(t, StatusUpcoming.IsPending())
	assert.True(t, StatusOverdue.IsPending())
	assert.False(t, StatusDone.IsPending())
}

func TestPlanKey(t *testing.T) {
	assert.Equal(t, "car-1:rule-1:20000", PlanKey("car-1", "rule-1", 20000))
	assert.NotEqual(t, PlanKey("car-1", "rule-1", 20000), PlanKey("car-1", "rule-1", 30000))
}

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()
	assert.Len(t, rules, 15)

	seen := make(map[string]bool)
	for _, r := range rules {
		assert.False(t, seen[r.Name], "duplicate rule %s", r.Name)
		seen[r.Name] = true
		assert.Positive(t, r.MileageInterval, r.Name)
	}
	assert.Equal(t, "VIDANGE", rules[0].Name)
	assert.Equal(t, int64(10000), rules[0].MileageInterval)
}
