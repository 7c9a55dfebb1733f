package domain

import (
	"time"
)

// SysOprLog audit trail of operator actions
type SysOprLog struct {
	ID         int64     `json:"id,string"`
	BusinessID int64     `gorm:"index" json:"business_id,string"`
	OprName    string    `json:"opr_name"`
	OprIp      string    `json:"opr_ip"`
	OptAction  string    `json:"opt_action"`
	OptDesc    string    `json:"opt_desc"`
	OptTime    time.Time `gorm:"index" json:"opt_time"`
}

// TableName Specify table name
func (SysOprLog) TableName() string {
	return "sys_opr_log"
}
