// Package methods holds the fixed mapping from template parameter columns to
// RESA2 method ids.
package methods

import (
	"sort"

	"github.com/JamesSample/icpw2/internal/errs"
)

// Method is one measurable parameter of the ICPW template.
type Method struct {
	Parameter string `json:"parameter"`
	Unit      string `json:"unit,omitempty"`
	MethodID  int    `json:"method_id"`
}

// Key is the flattened template header for the method.
func (m Method) Key() string {
	if m.Unit == "" {
		return m.Parameter
	}
	return m.Parameter + "_" + m.Unit
}

// Methods is the template's parameter table in sheet order.
var Methods = []Method{
	{Parameter: "pH", MethodID: 10268},
	{Parameter: "Cond25", Unit: "mS/m at 25C", MethodID: 10260},
	{Parameter: "NH4-N", Unit: "µgN/L", MethodID: 10264},
	{Parameter: "Ca", Unit: "mg/L", MethodID: 10251},
	{Parameter: "Mg", Unit: "mg/L", MethodID: 10261},
	{Parameter: "Na", Unit: "mg/L", MethodID: 10263},
	{Parameter: "K", Unit: "mg/L", MethodID: 10258},
	{Parameter: "Alk", Unit: "µeq/L", MethodID: 10298},
	{Parameter: "SO4", Unit: "mg/L", MethodID: 10271},
	{Parameter: "NO3-N", Unit: "µgN/L", MethodID: 10265},
	{Parameter: "Cl", Unit: "mg/L", MethodID: 10253},
	{Parameter: "F", Unit: "µg/L", MethodID: 11121},
	{Parameter: "TOTP", Unit: "µgP/L", MethodID: 10275},
	{Parameter: "TOTN", Unit: "µgN/L", MethodID: 10274},
	{Parameter: "ORTP", Unit: "µgP/L", MethodID: 10279},
	{Parameter: "OKS", Unit: "mgO/L", MethodID: 10277},
	{Parameter: "SiO2", Unit: "mgSiO2/L", MethodID: 10270},
	{Parameter: "DOC", Unit: "mgC/L", MethodID: 10294},
	{Parameter: "TOC", Unit: "mgC/L", MethodID: 10273},
	{Parameter: "PERM", Unit: "mgO/L", MethodID: 10267},
	{Parameter: "TAl", Unit: "µg/L", MethodID: 10249},
	{Parameter: "RAl", Unit: "µg/L", MethodID: 10269},
	{Parameter: "ILAl", Unit: "µg/L", MethodID: 10257},
	{Parameter: "LAl", Unit: "µg/L", MethodID: 10292},
	{Parameter: "Fe_Total", Unit: "µg/L", MethodID: 10256},
	{Parameter: "Mn_Total", Unit: "µg/L", MethodID: 10262},
	{Parameter: "Cd_Total", Unit: "µg/L", MethodID: 10252},
	{Parameter: "Zn_Total", Unit: "µg/L", MethodID: 10276},
	{Parameter: "Cu_Total", Unit: "µg/L", MethodID: 10254},
	{Parameter: "Ni_Total", Unit: "µg/L", MethodID: 10281},
	{Parameter: "Pb_Total", Unit: "µg/L", MethodID: 10266},
	{Parameter: "Cr_Total", Unit: "µg/L", MethodID: 10285},
	{Parameter: "As_Total", Unit: "µg/L", MethodID: 10293},
	{Parameter: "Hg_Total", Unit: "ng/L", MethodID: 10921},
	{Parameter: "Fe_Filt", Unit: "µg/L", MethodID: 11122},
	{Parameter: "Mn_Filt", Unit: "µg/L", MethodID: 11123},
	{Parameter: "Cd_Filt", Unit: "µg/L", MethodID: 11124},
	{Parameter: "Zn_Filt", Unit: "µg/L", MethodID: 11125},
	{Parameter: "Cu_Filt", Unit: "µg/L", MethodID: 11126},
	{Parameter: "Ni_Filt", Unit: "µg/L", MethodID: 11127},
	{Parameter: "Pb_Filt", Unit: "µg/L", MethodID: 11128},
	{Parameter: "Cr_Filt", Unit: "µg/L", MethodID: 11129},
	{Parameter: "As_Filt", Unit: "µg/L", MethodID: 11130},
	{Parameter: "Hg_Filt", Unit: "ng/L", MethodID: 11131},
	{Parameter: "COLOUR", Unit: "mgPt/L", MethodID: 10278},
	{Parameter: "TURB", Unit: "FTU", MethodID: 10284},
	{Parameter: "TEMP", Unit: "C", MethodID: 10272},
	{Parameter: "RUNOFF", Unit: "m3/s", MethodID: 10288},
}

var byKey = func() map[string]int {
	m := make(map[string]int, len(Methods))
	for _, method := range Methods {
		m[method.Key()] = method.MethodID
	}
	return m
}()

// Lookup returns the method id for a flattened template header.
func Lookup(key string) (int, bool) {
	id, ok := byKey[key]
	return id, ok
}

// MapColumns maps every header to its method id. All unmapped headers are
// reported together in an *errs.UnmappedParameterError.
func MapColumns(keys []string) ([]int, error) {
	ids := make([]int, len(keys))
	var missing []string
	for i, key := range keys {
		id, ok := Lookup(key)
		if !ok {
			missing = append(missing, key)
			continue
		}
		ids[i] = id
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &errs.UnmappedParameterError{Columns: missing}
	}
	return ids, nil
}
