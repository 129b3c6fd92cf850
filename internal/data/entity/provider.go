package entity

import "maps"

const ProviderGroupAll = "all"

type PaymentProvider struct {
	Base
	Name     string            `db:"name"`
	Group    string            `db:"provider_group"`
	Config   map[string]string `db:"config"`
	IsActive bool              `db:"is_active"`
	Rank     int               `db:"rank"`
}

// Clone returns an owned copy, config included.
func (p *PaymentProvider) Clone() *PaymentProvider {
	c := *p
	c.Config = maps.Clone(p.Config)
	if p.DeletedAt != nil {
		deletedAt := *p.DeletedAt
		c.DeletedAt = &deletedAt
	}
	return &c
}
