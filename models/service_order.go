package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Primary statuses. Custom free-form values are also accepted,
// these are just the well-known ones.
const (
	StatusADE  = "ADE" // awaiting availability - anchor for age rules
	StatusAVT  = "AVT"
	StatusEXT  = "EXT"
	StatusAM   = "A.M"
	StatusINST = "INST"
	StatusMS   = "M.S"
	StatusOSP  = "OSP" // done - exempt from deadline rules
	StatusEE   = "E.E"
)

const (
	PriorityNormal   = "normal"
	PriorityCritical = "critical"
)

// StatusSet is the set of statuses currently applicable to an order,
// stored as a JSON array in a text column.
type StatusSet []string

func (s StatusSet) Value() (driver.Value, error) {
	if s == nil {
		s = StatusSet{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StatusSet) Scan(value interface{}) error {
	if value == nil {
		*s = StatusSet{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported type %T for StatusSet", value)
	}
}

// Contains reports whether st is a member of the set.
func (s StatusSet) Contains(st string) bool {
	for _, v := range s {
		if v == st {
			return true
		}
	}
	return false
}

type ServiceOrder struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
	Owner     User      `gorm:"foreignKey:OwnerID" json:"-"`
	Customer  string    `gorm:"type:varchar(255);not null" json:"customer"`
	Equipment string    `gorm:"type:varchar(255);not null" json:"equipment"`
	Defect    string    `gorm:"type:text" json:"defect"`
	LaborCost float64   `gorm:"type:decimal(10,2);default:0.00" json:"labor_cost"`
	Status    string    `gorm:"type:varchar(30);not null;index" json:"status"`
	StatusSet StatusSet `gorm:"type:text;not null" json:"status_set"`
	Priority  string    `gorm:"type:varchar(10);not null;default:'normal'" json:"priority"`
	// CreatedAt anchors the "days in ADE" computation. It is reset when an
	// order transitions into ADE from another status.
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the order sits in the recycle bin.
func (o *ServiceOrder) IsDeleted() bool {
	return o.DeletedAt != nil
}
