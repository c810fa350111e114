package products

import (
	"fmt"
	"strings"

	"github.com/yusufpapurcu/wmi"
)

type win32Property struct {
	ProductCode string
}

// FindProducts asks WMI for the products registered under upgradeCode.
func FindProducts(upgradeCode string) ([]string, error) {
	code, err := NormalizeCode(upgradeCode)
	if err != nil {
		return nil, err
	}

	var rows []win32Property
	q := fmt.Sprintf("SELECT ProductCode FROM Win32_Property WHERE Property='UpgradeCode' AND Value='%s'", code)
	if err := wmi.Query(q, &rows); err != nil {
		return nil, fmt.Errorf("query upgrade code %s: %w", code, err)
	}

	seen := make(map[string]bool)
	var out []string
	for _, row := range rows {
		pc := strings.ToUpper(strings.TrimSpace(row.ProductCode))
		if pc == "" || seen[pc] {
			continue
		}
		seen[pc] = true
		out = append(out, pc)
	}
	return out, nil
}
