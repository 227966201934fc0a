package util

import (
	"fmt"
	"strings"
)

// QueryOperator is a filter comparison operator.
type QueryOperator string

const (
	OpEq        QueryOperator = "eq"
	OpNe        QueryOperator = "ne"
	OpGt        QueryOperator = "gt"
	OpGte       QueryOperator = "gte"
	OpLt        QueryOperator = "lt"
	OpLte       QueryOperator = "lte"
	OpIn        QueryOperator = "in"
	OpNin       QueryOperator = "nin"
	OpIsNull    QueryOperator = "isnull"
	OpIsNotNull QueryOperator = "isnotnull"
)

var validOperators = map[string]QueryOperator{
	"eq":        OpEq,
	"ne":        OpNe,
	"gt":        OpGt,
	"gte":       OpGte,
	"lt":        OpLt,
	"lte":       OpLte,
	"in":        OpIn,
	"nin":       OpNin,
	"isnull":    OpIsNull,
	"isnotnull": OpIsNotNull,
}

// QueryFilter is one filter condition. Value holds a string, or []string for
// the in/nin operators, or nil for the null checks.
type QueryFilter struct {
	Field    string
	Operator QueryOperator
	Value    interface{}
}

// OrderDirection is a sort direction.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// OrderClause is a single order-by term.
type OrderClause struct {
	Field     string
	Direction OrderDirection
}

// ListFilter carries the filtering, ordering and pagination of one list
// request.
type ListFilter struct {
	Filters []QueryFilter
	Order   []OrderClause
	Page    int
	PerPage int
}

// ParseListFilter assembles a ListFilter from the raw query and order
// parameters of a list endpoint, checking every referenced field against the
// endpoint's allow-lists.
func ParseListFilter(queryStr, orderStr string, page, perPage int, queryFields, orderFields []string) (ListFilter, error) {
	filter := ListFilter{Page: page, PerPage: perPage}

	filters, err := ParseQueryString(queryStr)
	if err != nil {
		return filter, err
	}
	if err := ValidateFilterFields(filters, queryFields); err != nil {
		return filter, err
	}
	filter.Filters = filters

	orders, err := ParseOrderString(orderStr)
	if err != nil {
		return filter, err
	}
	if err := ValidateOrderFields(orders, orderFields); err != nil {
		return filter, err
	}
	filter.Order = orders

	return filter, nil
}

// ParseQueryString parses comma-separated filter conditions. Each condition
// is field|value (equality), field|isnull, field|isnotnull, or
// field|operator|value. The in/nin operators take a comma-separated value
// list.
func ParseQueryString(queryStr string) ([]QueryFilter, error) {
	if queryStr == "" {
		return nil, nil
	}

	var filters []QueryFilter
	for _, pair := range strings.Split(queryStr, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.Split(pair, "|")
		switch len(parts) {
		case 2:
			op := strings.ToLower(parts[1])
			if op == "isnull" || op == "isnotnull" {
				filters = append(filters, QueryFilter{Field: parts[0], Operator: QueryOperator(op)})
			} else {
				filters = append(filters, QueryFilter{Field: parts[0], Operator: OpEq, Value: parts[1]})
			}

		case 3:
			opStr := strings.ToLower(parts[1])
			op, ok := validOperators[opStr]
			if !ok {
				return nil, fmt.Errorf("invalid operator: %s", opStr)
			}

			var value interface{}
			if op == OpIn || op == OpNin {
				value = strings.Split(parts[2], ",")
			} else {
				value = parts[2]
			}
			filters = append(filters, QueryFilter{Field: parts[0], Operator: op, Value: value})

		default:
			return nil, fmt.Errorf("invalid query format: %s (expected field|value or field|operator|value)", pair)
		}
	}

	return filters, nil
}

// ParseOrderString parses comma-separated field|direction order terms.
func ParseOrderString(orderStr string) ([]OrderClause, error) {
	if orderStr == "" {
		return nil, nil
	}

	var orders []OrderClause
	for _, pair := range strings.Split(orderStr, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.Split(pair, "|")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid order format: %s (expected field|direction)", pair)
		}

		direction := strings.ToLower(parts[1])
		if direction != "asc" && direction != "desc" {
			return nil, fmt.Errorf("invalid order direction: %s (expected asc or desc)", direction)
		}
		orders = append(orders, OrderClause{Field: parts[0], Direction: OrderDirection(direction)})
	}

	return orders, nil
}

// ValidateFilterFields rejects filters referencing fields outside the allowed
// set.
func ValidateFilterFields(filters []QueryFilter, allowedFields []string) error {
	allowed := make(map[string]bool, len(allowedFields))
	for _, f := range allowedFields {
		allowed[f] = true
	}
	for _, filter := range filters {
		if !allowed[filter.Field] {
			return fmt.Errorf("invalid query field: %s (valid fields: %s)", filter.Field, strings.Join(allowedFields, ", "))
		}
	}
	return nil
}

// ValidateOrderFields rejects order terms referencing fields outside the
// allowed set.
func ValidateOrderFields(orders []OrderClause, allowedFields []string) error {
	allowed := make(map[string]bool, len(allowedFields))
	for _, f := range allowedFields {
		allowed[f] = true
	}
	for _, order := range orders {
		if !allowed[order.Field] {
			return fmt.Errorf("invalid order field: %s (valid fields: %s)", order.Field, strings.Join(allowedFields, ", "))
		}
	}
	return nil
}
