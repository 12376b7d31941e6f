package maintenance

import "github.com/ukydev/fleet-maintenance/internal/models"

// DuePoint is one occurrence of a rule that should be planned.
type DuePoint struct {
	Mileage int64
	Status  models.MaintenanceStatus
}

// ComputeDue lists the due points of a rule, starting one interval after
// lastDone and stopping once the next point lies beyond current+buffer.
// Points at or below current are overdue, the others upcoming.
func ComputeDue(lastDone, interval, current, buffer int64) []DuePoint {
	if interval <= 0 {
		return nil
	}
	var points []DuePoint
	for due := lastDone + interval; due <= current+buffer; due += interval {
		status := models.StatusUpcoming
		if due <= current {
			status = models.StatusOverdue
		}
		points = append(points, DuePoint{Mileage: due, Status: status})
	}
	return points
}

// lastDoneMileage returns the mileage of the most recent completed occurrence
// of rule, or baseline when there is none. done is sorted by mileage, highest
// first.
func lastDoneMileage(done []models.MaintenanceRecord, rule models.MaintenanceRule, baseline int64) int64 {
	for i := range done {
		if done[i].MatchesRule(rule) {
			return done[i].RecordedMileage
		}
	}
	return baseline
}

// hasInstance reports whether records already hold an occurrence of rule at
// mileage.
func hasInstance(records []models.MaintenanceRecord, rule models.MaintenanceRule, mileage int64) bool {
	for i := range records {
		if records[i].RecordedMileage == mileage && records[i].MatchesRule(rule) {
			return true
		}
	}
	return false
}
