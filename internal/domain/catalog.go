package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Available bool            `json:"available" db:"available"`
}

type Client struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
