package conn

type RequestAction string

const (
	// session state actions
	RequestActionSelect RequestAction = "select"
	RequestActionClear  RequestAction = "clearSelections"
	RequestActionReset  RequestAction = "reset"
	RequestActionQuery  RequestAction = "query"
	RequestActionReload RequestAction = "reload"

	// metadata actions
	RequestActionTables RequestAction = "tables"
)

func (action RequestAction) IsReadOnly() bool {
	return action == RequestActionTables || action == RequestActionQuery
}
