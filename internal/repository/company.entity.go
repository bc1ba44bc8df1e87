package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
)

type CompanyEntity struct {
	ID   int64  `db:"id"   gorm:"primaryKey;autoIncrement;column:id"`
	Name string `db:"name" gorm:"column:name;not null"`

	PifDiscountPercent *decimal.Decimal `db:"pif_discount_percent" gorm:"column:pif_discount_percent;type:decimal(5,2)"`
	PpaDiscountPercent *decimal.Decimal `db:"ppa_discount_percent" gorm:"column:ppa_discount_percent;type:decimal(5,2)"`
	MinMonthlyPercent  *decimal.Decimal `db:"min_monthly_percent"  gorm:"column:min_monthly_percent;type:decimal(5,2)"`
	MaxFirstPayDays    *int             `db:"max_first_pay_days"   gorm:"column:max_first_pay_days"`

	MerchantGateway string `db:"merchant_gateway" gorm:"column:merchant_gateway;not null;default:stripe"`
}

func (CompanyEntity) TableName() string {
	return "companies"
}

type SubclientEntity struct {
	ID        int64  `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	CompanyID int64  `db:"company_id" gorm:"column:company_id;not null;index"`
	Name      string `db:"name"       gorm:"column:name;not null"`

	PifDiscountPercent *decimal.Decimal `db:"pif_discount_percent" gorm:"column:pif_discount_percent;type:decimal(5,2)"`
	PpaDiscountPercent *decimal.Decimal `db:"ppa_discount_percent" gorm:"column:ppa_discount_percent;type:decimal(5,2)"`
	MinMonthlyPercent  *decimal.Decimal `db:"min_monthly_percent"  gorm:"column:min_monthly_percent;type:decimal(5,2)"`
	MaxFirstPayDays    *int             `db:"max_first_pay_days"   gorm:"column:max_first_pay_days"`
}

func (SubclientEntity) TableName() string {
	return "subclients"
}

type MembershipEntity struct {
	ID            int64           `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	CompanyID     int64           `db:"company_id"      gorm:"column:company_id;not null;index"`
	FeePercent    decimal.Decimal `db:"fee_percent"     gorm:"column:fee_percent;type:decimal(5,2);not null"`
	PlanStartedAt time.Time       `db:"plan_started_at" gorm:"column:plan_started_at;not null"`
	Active        bool            `db:"active"          gorm:"column:active;not null;default:true"`
}

func (MembershipEntity) TableName() string {
	return "memberships"
}

func toCompanyModel(e *CompanyEntity) *model.Company {
	if e == nil {
		return nil
	}
	return &model.Company{
		ID:                 e.ID,
		Name:               e.Name,
		PifDiscountPercent: e.PifDiscountPercent,
		PpaDiscountPercent: e.PpaDiscountPercent,
		MinMonthlyPercent:  e.MinMonthlyPercent,
		MaxFirstPayDays:    e.MaxFirstPayDays,
		MerchantGateway:    e.MerchantGateway,
	}
}

func toSubclientModel(e *SubclientEntity) *model.Subclient {
	if e == nil {
		return nil
	}
	return &model.Subclient{
		ID:                 e.ID,
		CompanyID:          e.CompanyID,
		Name:               e.Name,
		PifDiscountPercent: e.PifDiscountPercent,
		PpaDiscountPercent: e.PpaDiscountPercent,
		MinMonthlyPercent:  e.MinMonthlyPercent,
		MaxFirstPayDays:    e.MaxFirstPayDays,
	}
}

func toMembershipModel(e *MembershipEntity) *model.Membership {
	if e == nil {
		return nil
	}
	return &model.Membership{
		ID:            e.ID,
		CompanyID:     e.CompanyID,
		FeePercent:    e.FeePercent,
		PlanStartedAt: e.PlanStartedAt,
		Active:        e.Active,
	}
}
