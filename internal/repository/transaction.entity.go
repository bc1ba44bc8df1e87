package repository

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
)

type TransactionEntity struct {
	ID         int64           `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	ConsumerID int64           `db:"consumer_id" gorm:"column:consumer_id;not null;index"`
	Amount     decimal.Decimal `db:"amount"      gorm:"column:amount;type:decimal(12,2);not null"`
	Status     string          `db:"status"      gorm:"column:status;not null"`

	GatewayName string `db:"gateway_name" gorm:"column:gateway_name;not null"`
	ExternalID  string `db:"external_id"  gorm:"column:external_id"`
	StatusCode  string `db:"status_code"  gorm:"column:status_code"`
	RawResponse string `db:"raw_response" gorm:"column:raw_response;type:text"`

	RnnShare               decimal.Decimal `db:"rnn_share"                gorm:"column:rnn_share;type:decimal(12,2);not null"`
	CompanyShare           decimal.Decimal `db:"company_share"            gorm:"column:company_share;type:decimal(12,2);not null"`
	RevenueSharePercentage decimal.Decimal `db:"revenue_share_percentage" gorm:"column:revenue_share_percentage;type:decimal(5,2);not null"`

	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:                     m.ID,
		ConsumerID:             m.ConsumerID,
		Amount:                 m.Amount,
		Status:                 string(m.Status),
		GatewayName:            m.GatewayName,
		ExternalID:             m.ExternalID,
		StatusCode:             m.StatusCode,
		RawResponse:            m.RawResponse,
		RnnShare:               m.RnnShare,
		CompanyShare:           m.CompanyShare,
		RevenueSharePercentage: m.RevenueSharePercentage,
		CreatedAt:              m.CreatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:                     e.ID,
		ConsumerID:             e.ConsumerID,
		Amount:                 e.Amount,
		Status:                 model.TransactionStatus(e.Status),
		GatewayName:            e.GatewayName,
		ExternalID:             e.ExternalID,
		StatusCode:             e.StatusCode,
		RawResponse:            e.RawResponse,
		RnnShare:               e.RnnShare,
		CompanyShare:           e.CompanyShare,
		RevenueSharePercentage: e.RevenueSharePercentage,
		CreatedAt:              e.CreatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
