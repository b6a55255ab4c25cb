package dto

import (
	"time"

	"laundry-delivery/internal/entities"
)

type HistoryEntryDTO struct {
	ID        uint64   `json:"id"`
	Status    string   `json:"status"`
	Notes     *string  `json:"notes,omitempty"`
	IsFail    bool     `json:"is_fail"`
	ActorID   *uint64  `json:"actor_id,omitempty"`
	PhotoURLs []string `json:"photo_urls"`
	CreatedAt string   `json:"created_at"`
}

func NewHistoryResponse(items []entities.OrderHistory) []HistoryEntryDTO {
	result := make([]HistoryEntryDTO, 0, len(items))
	for _, h := range items {
		photos := h.PhotoURLs
		if photos == nil {
			photos = []string{}
		}
		result = append(result, HistoryEntryDTO{
			ID:        h.ID,
			Status:    h.Status,
			Notes:     h.Notes.Ptr(),
			IsFail:    h.IsFail,
			ActorID:   h.ActorID.Ptr(),
			PhotoURLs: photos,
			CreatedAt: h.CreatedAt.Format(time.RFC3339),
		})
	}
	return result
}

type AssignmentDTO struct {
	ID          uint64  `json:"id"`
	Phase       string  `json:"phase"`
	Outcome     string  `json:"outcome"`
	Label       string  `json:"label"`
	AssignedTo  uint64  `json:"assigned_to"`
	AssignedBy  uint64  `json:"assigned_by"`
	InProgress  bool    `json:"in_progress"`
	Reason      *string `json:"reason,omitempty"`
	AssignedAt  string  `json:"assigned_at"`
	StartedAt   *string `json:"started_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

func formatNullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func NewAssignmentsResponse(items []entities.Assignment) []AssignmentDTO {
	result := make([]AssignmentDTO, 0, len(items))
	for i := range items {
		a := &items[i]
		result = append(result, AssignmentDTO{
			ID:          a.ID,
			Phase:       string(a.Phase),
			Outcome:     string(a.Outcome),
			Label:       a.Label(),
			AssignedTo:  a.AssignedTo,
			AssignedBy:  a.AssignedBy,
			InProgress:  a.InProgress,
			Reason:      a.Reason.Ptr(),
			AssignedAt:  a.AssignedAt.Format(time.RFC3339),
			StartedAt:   formatNullTime(a.StartedAt.Ptr()),
			CompletedAt: formatNullTime(a.CompletedAt.Ptr()),
		})
	}
	return result
}
