package model

// Known status ids wired into business rules. Codes 2-4 are configurable
// in-progress sub-stages and only exist as catalog rows.
const (
	StatusNew         = 1
	StatusDelivered   = 5
	StatusRejected    = 6
	StatusHasProblems = 7
)

// Status is one row of the status catalog: a display name, the default
// forward-advance target and whether the status ends the order's life.
// A nil NextID means the status is a dead end for advance mode; status 7
// deliberately has no next so leaving it always takes an explicit jump.
type Status struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	Name     string `gorm:"size:64;not null" json:"name"`
	NextID   *uint  `json:"next_id,omitempty"`
	Terminal bool   `gorm:"not null;default:false" json:"terminal"`
}

func (Status) TableName() string { return "statuses" }

// DefaultStatuses is the seed catalog: 1 new, 2-4 in progress,
// 5 delivered (terminal), 6 rejected (terminal), 7 has-problems.
func DefaultStatuses() []Status {
	next := func(id uint) *uint { return &id }
	return []Status{
		{ID: 1, Name: "new", NextID: next(2)},
		{ID: 2, Name: "confirmed", NextID: next(3)},
		{ID: 3, Name: "preparing", NextID: next(4)},
		{ID: 4, Name: "shipped", NextID: next(5)},
		{ID: 5, Name: "delivered", Terminal: true},
		{ID: 6, Name: "rejected", Terminal: true},
		{ID: 7, Name: "has_problems"},
	}
}
