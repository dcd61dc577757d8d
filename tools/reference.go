package tools

import (
	"strings"
	"time"

	"github.com/blkluv/dentist-ai/models"
)

// DeflectionAnswer is returned when no knowledge entry matches a question.
const DeflectionAnswer = "I'm not sure about that one. I can have someone from the office follow up with you, or you can ask me about our hours, location, insurance, parking, or new patient visits."

// Reference is the immutable clinic data shared by every call.
type Reference struct {
	ClinicName string
	Knowledge  []models.KnowledgeEntry
	Slots      []models.AppointmentSlot
}

// NewReference builds the clinic's knowledge table and slot list.
// Knowledge order is match priority.
func NewReference(clinicName string) *Reference {
	return &Reference{
		ClinicName: clinicName,
		Knowledge: []models.KnowledgeEntry{
			{
				Topic:    "hours",
				Keywords: []string{"hour", "open on", "when are you open", "when do you open", "what time", "when do you close", "closing", "closed on"},
				Answer:   "We're open Monday through Friday from 8 AM to 5 PM, and Saturday from 9 AM to 1 PM. We're closed on Sundays.",
			},
			{
				Topic:    "address",
				Keywords: []string{"address", "location", "located", "where are you", "directions"},
				Answer:   "We're at 125 Main Street, Suite 200, right across from the public library.",
			},
			{
				Topic:    "insurance",
				Keywords: []string{"insurance", "cigna", "aetna", "delta dental", "metlife", "blue cross", "ppo", "coverage"},
				Answer:   "We accept most major PPO plans, including Delta Dental, Cigna, Aetna, MetLife, and Blue Cross. Bring your card and we'll verify your benefits before your visit.",
			},
			{
				Topic:    "parking",
				Keywords: []string{"parking", "park"},
				Answer:   "Free parking is available in the lot behind the building. Enter from Oak Avenue.",
			},
			{
				Topic:    "new_patient",
				Keywords: []string{"new patient", "first visit", "first appointment", "accepting patients"},
				Answer:   "Yes, we're accepting new patients! Your first visit includes an exam, X-rays, and a cleaning. Please arrive 15 minutes early to fill out paperwork.",
			},
		},
		Slots: []models.AppointmentSlot{
			{ID: "tue-1400", Label: "Tue 2:00 PM (Dr. Patel)", Day: "Tue", Provider: "Dr. Patel", Window: "afternoon"},
			{ID: "wed-0900", Label: "Wed 9:00 AM (Dr. Lee)", Day: "Wed", Provider: "Dr. Lee", Window: "morning"},
			{ID: "wed-1530", Label: "Wed 3:30 PM (Dr. Lee)", Day: "Wed", Provider: "Dr. Lee", Window: "afternoon"},
			{ID: "thu-1000", Label: "Thu 10:00 AM (Dr. Patel)", Day: "Thu", Provider: "Dr. Patel", Window: "morning"},
			{ID: "fri-1100", Label: "Fri 11:00 AM (Dr. Lee)", Day: "Fri", Provider: "Dr. Lee", Window: "morning"},
		},
	}
}

// Answer returns the first entry whose keyword appears in the question,
// compared case-insensitively, or DeflectionAnswer.
func (r *Reference) Answer(question string) string {
	q := strings.ToLower(question)
	for _, entry := range r.Knowledge {
		for _, kw := range entry.Keywords {
			if strings.Contains(q, strings.ToLower(kw)) {
				return entry.Answer
			}
		}
	}
	return DeflectionAnswer
}

// FindSlot looks a slot up by id
func (r *Reference) FindSlot(id string) (models.AppointmentSlot, bool) {
	for _, s := range r.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return models.AppointmentSlot{}, false
}

// AllSlots returns a copy of the slot list so callers can't alias the shared data.
func (r *Reference) AllSlots() []models.AppointmentSlot {
	out := make([]models.AppointmentSlot, len(r.Slots))
	copy(out, r.Slots)
	return out
}

// FilterSlots narrows the slot list by day, provider and time-of-day window.
// Empty filters match everything.
func (r *Reference) FilterSlots(date, provider, window string) []models.AppointmentSlot {
	day := weekdayPrefix(date)
	provider = strings.ToLower(strings.TrimSpace(provider))
	window = strings.ToLower(strings.TrimSpace(window))

	out := make([]models.AppointmentSlot, 0, len(r.Slots))
	for _, s := range r.Slots {
		if day != "" && !strings.EqualFold(s.Day, day) {
			continue
		}
		if provider != "" && !strings.Contains(strings.ToLower(s.Provider), provider) {
			continue
		}
		if window != "" && window != s.Window {
			continue
		}
		out = append(out, s)
	}
	return out
}

// weekdayPrefix turns "Wednesday", "wed" or "2025-01-15" into "wed".
func weekdayPrefix(date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return ""
	}
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return strings.ToLower(t.Weekday().String()[:3])
	}
	lower := strings.ToLower(date)
	if len(lower) < 3 {
		return lower
	}
	return lower[:3]
}
