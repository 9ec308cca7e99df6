package httputil

import (
	"net/url"
	"reflect"
)

// GetURLFields returns the fields of a query filter struct that are set in
// the URL.
//
// The first return value lists the fields gorm filters on directly, the
// second lists every set field. A struct tag filterField:"false" marks meta
// fields that are handled by explicit logic in the controller instead of
// being passed to gorm.
func GetURLFields(url *url.URL, filter any) ([]any, []string) {
	var queryFields []any
	var setFields []string

	val := reflect.Indirect(reflect.ValueOf(filter))
	for i := 0; i < val.NumField(); i++ {
		field := val.Type().Field(i).Name
		param := val.Type().Field(i).Tag.Get("form")
		filterField := val.Type().Field(i).Tag.Get("filterField")

		if url.Query().Has(param) {
			setFields = append(setFields, field)

			if filterField != "false" {
				queryFields = append(queryFields, field)
			}
		}
	}

	return queryFields, setFields
}
