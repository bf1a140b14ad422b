package indicator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sanjaynair/amlscope/internal/model"
)

var validFields = map[string]bool{
	"amount":        true,
	"description":   true,
	"country":       true,
	"currency":      true,
	"account_type":  true,
	"customer_risk": true,
}

// Match evaluates a parsed expression against tx.
func Match(node Node, tx model.Transaction) (bool, error) {
	switch n := node.(type) {
	case *binaryNode:
		left, err := Match(n.left, tx)
		if err != nil {
			return false, err
		}
		// Short-circuit.
		if n.op == "AND" && !left {
			return false, nil
		}
		if n.op == "OR" && left {
			return true, nil
		}
		return Match(n.right, tx)
	case *notNode:
		v, err := Match(n.child, tx)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *compareNode:
		return matchComparison(n, tx)
	default:
		return false, fmt.Errorf("indicator: unknown node type %T", node)
	}
}

// MatchExpr parses and evaluates in one step.
func MatchExpr(expr string, tx model.Transaction) (bool, error) {
	node, err := Parse(expr)
	if err != nil {
		return false, err
	}
	return Match(node, tx)
}

func matchComparison(n *compareNode, tx model.Transaction) (bool, error) {
	if n.field == "amount" {
		if !n.value.isNum {
			return false, fmt.Errorf("indicator: amount compared against non-numeric value")
		}
		return compareFloat(tx.Amount, n.op, n.value.num)
	}

	var field string
	switch n.field {
	case "description":
		field = tx.Description
	case "country":
		field = tx.DestinationCountry
	case "currency":
		field = tx.Currency
	case "account_type":
		field = string(tx.AccountType)
	case "customer_risk":
		field = string(tx.CustomerRiskRating)
	}

	want := n.value.str
	switch n.op {
	case "==":
		return strings.EqualFold(field, want), nil
	case "!=":
		return !strings.EqualFold(field, want), nil
	case "contains":
		return strings.Contains(strings.ToLower(field), strings.ToLower(want)), nil
	case "matches":
		re, err := regexp.Compile("(?i)" + want)
		if err != nil {
			return false, fmt.Errorf("indicator: bad pattern %q: %w", want, err)
		}
		return re.MatchString(field), nil
	default:
		return false, fmt.Errorf("indicator: operator %q not valid for string field %q", n.op, n.field)
	}
}

func compareFloat(have float64, op string, want float64) (bool, error) {
	switch op {
	case ">":
		return have > want, nil
	case ">=":
		return have >= want, nil
	case "<":
		return have < want, nil
	case "<=":
		return have <= want, nil
	case "==":
		return have == want, nil
	case "!=":
		return have != want, nil
	default:
		return false, fmt.Errorf("indicator: operator %q not valid for numeric field", op)
	}
}
