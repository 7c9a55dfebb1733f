package domain

var Tables = []interface{}{
	// System
	&SysOprLog{},
	// Tenancy
	&Business{},
	&User{},
	// Catalog
	&Category{},
	&Product{},
	// Sales
	&Transaction{},
	&TransactionItem{},
	// Features
	&Feature{},
	&ActivationKey{},
	&BusinessFeature{},
}
