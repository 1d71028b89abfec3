package data

import "time"

// Profile is one row of the ria_profiles table. The pipeline treats it as
// read-only input for narrative generation; schema ownership lies with the
// loader that populated the table.
type Profile struct {
	CRDNumber     int64     `gorm:"column:crd_number;primaryKey"`
	LegalName     string    `gorm:"column:legal_name"`
	SECNumber     string    `gorm:"column:sec_number"`
	City          string    `gorm:"column:city"`
	State         string    `gorm:"column:state"`
	AUM           int64     `gorm:"column:aum"`
	EmployeeCount int       `gorm:"column:employee_count"`
	Services      string    `gorm:"column:services"`
	ClientTypes   string    `gorm:"column:client_types"`
	LastUpdated   time.Time `gorm:"column:last_updated"`
}

func (Profile) TableName() string {
	return "ria_profiles"
}
