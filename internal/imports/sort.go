package imports

import (
	"slices"
	"strings"
	"time"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/model"
)

// Sortable columns.
const (
	SortRepositoryName         = "repository.name"
	SortRepositoryOrganization = "repository.organization"
	SortRepositoryURL          = "repository.url"
	SortApprovalTool           = "approvalTool"
	SortStatus                 = "status"
	SortLastUpdate             = "lastUpdate"
	SortCatalogEntityName      = "catalogEntityName"

	SortAsc  = "asc"
	SortDesc = "desc"
)

func stringField(imp *model.Import, column string) string {
	switch column {
	case SortRepositoryOrganization:
		if imp.Repository != nil {
			return imp.Repository.Organization
		}
	case SortRepositoryURL:
		if imp.Repository != nil {
			return imp.Repository.URL
		}
	case SortApprovalTool:
		return string(imp.ApprovalTool)
	case SortStatus:
		return string(imp.Status)
	case SortCatalogEntityName:
		return imp.CatalogEntityName
	default:
		if imp.Repository != nil {
			return imp.Repository.Name
		}
	}

	return ""
}

// compareImports orders a before b in ascending order. Missing values come
// first. lastUpdate compares b against a, so ascending lists the most recent
// update first.
func compareImports(a, b *model.Import, column string) int {
	if column == SortLastUpdate {
		return compareMissing(a.LastUpdate == nil, b.LastUpdate == nil, func() int {
			return compareTimes(*b.LastUpdate, *a.LastUpdate)
		})
	}

	av, bv := stringField(a, column), stringField(b, column)

	return compareMissing(av == "", bv == "", func() int {
		return strings.Compare(av, bv)
	})
}

func compareMissing(aMissing, bMissing bool, present func() int) int {
	switch {
	case aMissing && bMissing:
		return 0
	case aMissing:
		return -1
	case bMissing:
		return 1
	}

	return present()
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}

	return 0
}

// sortImports orders imports in place by column. An empty column sorts by
// repository name, any order other than "desc" is ascending.
func sortImports(imports []*model.Import, column, order string) {
	if column == "" {
		column = SortRepositoryName
	}

	desc := strings.EqualFold(order, SortDesc)

	slices.SortStableFunc(imports, func(a, b *model.Import) int {
		c := compareImports(a, b, column)
		if desc {
			return -c
		}

		return c
	})
}
