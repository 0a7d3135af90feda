package rpcgateway

// Operation is one of the enumerated RPC verbs the gateway accepts (§6.1).
type Operation string

const (
	OpSearch      Operation = "search"
	OpSearchRead  Operation = "search_read"
	OpRead        Operation = "read"
	OpSearchCount Operation = "search_count"
	OpFieldsGet   Operation = "fields_get"
	OpNameSearch  Operation = "name_search"
	OpNameGet     Operation = "name_get"
	OpCreate      Operation = "create"
	OpWrite       Operation = "write"
	OpUnlink      Operation = "unlink"
	OpCallKw      Operation = "call_kw"
)

// readOps are cached (spec §4.7: "search_count and fields_get are cached
// like reads").
var readOps = map[Operation]bool{
	OpSearch:      true,
	OpSearchRead:  true,
	OpRead:        true,
	OpSearchCount: true,
	OpFieldsGet:   true,
	OpNameSearch:  true,
	OpNameGet:     true,
}

// writeOps invalidate the (tenant, model) cache. call_kw is conservatively
// classified as write-shaped per spec §4.7/§9(c): the called method may
// mutate, and the spec explicitly forbids inferring otherwise.
var writeOps = map[Operation]bool{
	OpCreate: true,
	OpWrite:  true,
	OpUnlink: true,
	OpCallKw: true,
}

// IsKnown reports whether op is in the enumerated set.
func IsKnown(op Operation) bool {
	return readOps[op] || writeOps[op]
}

// IsReadShaped reports whether op is served through the read-through cache.
func IsReadShaped(op Operation) bool {
	return readOps[op]
}

// AppProfile maps an app-type label to the models it cares about (§6.1).
// An empty set means "all models".
var AppProfile = map[string]map[string]bool{
	"sales_app":     {"sale.order": true, "res.partner": true, "product.product": true},
	"delivery_app":  {"stock.picking": true, "res.partner": true},
	"warehouse_app": {"stock.picking": true, "product.product": true},
	"manager_app":   {},
	"mobile_app":    {},
}

// ResolveAppProfile returns the model set for an app-type, defaulting
// unknown app-types to mobile_app (all models) per spec §6.1.
func ResolveAppProfile(appType string) map[string]bool {
	if profile, ok := AppProfile[appType]; ok {
		return profile
	}
	return AppProfile["mobile_app"]
}
