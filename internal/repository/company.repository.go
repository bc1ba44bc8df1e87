package repository

import (
	"context"
	"errors"

	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/younegotiate/settlement-engine/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrCompanyNotFound    = errors.New("company not found")
	ErrSubclientNotFound  = errors.New("subclient not found")
	ErrNoActiveMembership = errors.New("no active membership for company")
)

type CompanyRepository struct {
	*pg.DB
}

func NewCompanyRepository(db *pg.DB) *CompanyRepository {
	return &CompanyRepository{
		db,
	}
}

func (r *CompanyRepository) Get(ctx context.Context, id int64) (*model.Company, error) {
	var entity CompanyEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}

	return toCompanyModel(&entity), nil
}

func (r *CompanyRepository) GetSubclient(ctx context.Context, id int64) (*model.Subclient, error) {
	var entity SubclientEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("id = ?", id).
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubclientNotFound
		}
		return nil, err
	}

	return toSubclientModel(&entity), nil
}

// ActiveMembership returns the company's active membership with the
// most recent plan start date: the one carrying the fee percent used
// for revenue share.
func (r *CompanyRepository) ActiveMembership(ctx context.Context, companyID int64) (*model.Membership, error) {
	var entity MembershipEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("company_id = ? AND active = ?", companyID, true).
		Order("plan_started_at DESC").
		First(&entity).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveMembership
		}
		return nil, err
	}

	return toMembershipModel(&entity), nil
}
