package casing

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestCamelToSnake(t *testing.T) {
	cases := map[string]string{
		"firstIndexInPage": "first_index_in_page",
		"id":               "id",
		"already_snake":    "already_snake",
		"hireDate2":        "hire_date2",
		"":                 "",
	}
	for in, want := range cases {
		if got := CamelToSnake(in); got != want {
			t.Errorf("CamelToSnake(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnakeToCamel(t *testing.T) {
	cases := map[string]string{
		"first_index_in_page": "firstIndexInPage",
		"id":                  "id",
		"alreadyCamel":        "alreadyCamel",
		"level_2":             "level_2",
		"trailing_":           "trailing_",
	}
	for in, want := range cases {
		if got := SnakeToCamel(in); got != want {
			t.Errorf("SnakeToCamel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToSnakeCase_scenario(t *testing.T) {
	got := ToSnakeCase(map[string]any{"firstIndexInPage": 1})
	want := map[string]any{"first_index_in_page": 1}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ToSnakeCase = %v, want %v", got, want)
	}

	back := ToCamelCase(got)
	if !reflect.DeepEqual(back, map[string]any{"firstIndexInPage": 1}) {
		t.Errorf("ToCamelCase(round trip) = %v", back)
	}
}

func TestToSnakeCase_nested(t *testing.T) {
	in := map[string]any{
		"pageData": map[string]any{
			"list": []any{
				map[string]any{"fullName": "Ann", "hireDate": "2020-01-02"},
				"scalarItem",
				nil,
			},
			"totalRecords": json.Number("25"),
		},
		"rows": []map[string]any{{"jobRoleId": "r-1"}},
	}
	want := map[string]any{
		"page_data": map[string]any{
			"list": []any{
				map[string]any{"full_name": "Ann", "hire_date": "2020-01-02"},
				"scalarItem",
				nil,
			},
			"total_records": json.Number("25"),
		},
		"rows": []map[string]any{{"job_role_id": "r-1"}},
	}
	if got := ToSnakeCase(in); !reflect.DeepEqual(got, want) {
		t.Errorf("ToSnakeCase = %#v\nwant %#v", got, want)
	}
}

func TestToSnakeCase_valuesUntouched(t *testing.T) {
	got := ToSnakeCase(map[string]any{"sortColumn": "hireDate"}).(map[string]any)
	if got["sort_column"] != "hireDate" {
		t.Errorf("value was converted: %v", got["sort_column"])
	}
}

func TestConvert_doesNotMutateInput(t *testing.T) {
	inner := map[string]any{"jobRoleId": "r-1"}
	in := map[string]any{"employeeNo": "E1", "nested": inner, "items": []any{inner}}

	_ = ToSnakeCase(in)

	if _, ok := in["employeeNo"]; !ok {
		t.Error("input top-level key was rewritten")
	}
	if _, ok := inner["jobRoleId"]; !ok {
		t.Error("input nested key was rewritten")
	}
	if len(in) != 3 || len(inner) != 1 {
		t.Error("input maps changed size")
	}
}

func TestConvert_sameDirectionTwiceIsStable(t *testing.T) {
	in := map[string]any{"firstIndexInPage": 1, "items": []any{map[string]any{"isActive": true}}}

	once := ToSnakeCase(in)
	twice := ToSnakeCase(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("ToSnakeCase twice = %v, once = %v", twice, once)
	}

	camelOnce := ToCamelCase(once)
	camelTwice := ToCamelCase(camelOnce)
	if !reflect.DeepEqual(camelOnce, camelTwice) {
		t.Errorf("ToCamelCase twice = %v, once = %v", camelTwice, camelOnce)
	}
}

func TestConvert_scalarsPassThrough(t *testing.T) {
	for _, v := range []any{nil, 1, "someKey", true, 2.5, json.Number("7")} {
		if got := ToSnakeCase(v); !reflect.DeepEqual(got, v) {
			t.Errorf("ToSnakeCase(%v) = %v", v, got)
		}
	}
}

func TestConvert_depthLimit(t *testing.T) {
	var v any = map[string]any{"leafKey": 1}
	for range 12 {
		v = map[string]any{"nestedKey": v}
	}

	out := ToSnakeCase(v)

	m := out.(map[string]any)
	for d := 0; d <= MaxDepth; d++ {
		next, ok := m["nested_key"]
		if !ok {
			t.Fatalf("depth %d: key not converted: %v", d, m)
		}
		m = next.(map[string]any)
	}
	if _, ok := m["nestedKey"]; !ok {
		t.Fatalf("depth %d: expected unconverted subtree, got %v", MaxDepth+1, m)
	}
}
