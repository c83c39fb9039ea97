package conn

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/NPLinker/nplinker/internal/linker"
	"github.com/NPLinker/nplinker/internal/schema"
)

type Response struct {
	Data    any    `json:"data"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	// don't manually set this. it comes from the client
	ReqId int `json:"__np_client_req_id__"`
}

func NewErrorResponse(status int, err string) Response {
	return Response{Message: err, Status: status}
}

func NewResponse(status int, message string, data any) Response {
	return Response{Data: data, Message: message, Status: status}
}

// TableMeta is the per-table metadata handed to a freshly connected client,
// along with the table's current display payload.
type TableMeta struct {
	Name       string            `json:"name"`
	Columns    []string          `json:"columns"`
	PrimaryKey string            `json:"pk,omitempty"`
	Data       linker.ColumnData `json:"data"`
}

func TablesReqHandler(session *Session) Response {
	tables := []TableMeta{}
	for _, table := range session.Linker.Schema().Visible() {
		source, _ := session.Source(table.Name)
		tables = append(tables, TableMeta{
			Name:       table.Name,
			Columns:    table.Columns,
			PrimaryKey: table.PrimaryKey,
			Data:       source.Data(),
		})
	}
	return NewResponse(http.StatusOK, "Tables in session", tables)
}

type SelectRequest struct {
	Table    string `json:"table"`
	RowIndex int    `json:"rowIndex"`
}

func SelectReqHandler(session *Session, raw []byte) Response {
	var req SelectRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	source, ok := session.Source(req.Table)
	if !ok {
		return NewErrorResponse(http.StatusNotFound, "Table not found")
	}

	if err := session.Linker.AddSelection(req.Table, req.RowIndex, source); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	changed, err := session.RunTurn()
	if err != nil {
		return NewErrorResponse(http.StatusInternalServerError, err.Error())
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Selected row %d in table %s", req.RowIndex, req.Table), changed)
}

type ClearRequest struct {
	Table string `json:"table"`
}

func ClearReqHandler(session *Session, raw []byte) Response {
	var req ClearRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	if err := session.Linker.ClearSelections(req.Table); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	changed, err := session.RunTurn()
	if err != nil {
		return NewErrorResponse(http.StatusInternalServerError, err.Error())
	}
	return NewResponse(http.StatusOK,
		fmt.Sprintf("Cleared selections in table %s", req.Table), changed)
}

func ResetReqHandler(session *Session) Response {
	for _, table := range session.Linker.Schema().Linkable() {
		if err := session.Linker.ClearSelections(table.Name); err != nil {
			return NewErrorResponse(http.StatusInternalServerError, err.Error())
		}
	}

	changed, err := session.RunTurn()
	if err != nil {
		return NewErrorResponse(http.StatusInternalServerError, err.Error())
	}
	return NewResponse(http.StatusOK, "Cleared all selections", changed)
}

func QueryReqHandler(session *Session) Response {
	changed, err := session.RunTurn()
	if err != nil {
		return NewErrorResponse(http.StatusInternalServerError, err.Error())
	}
	return NewResponse(http.StatusOK, "Query complete", changed)
}

type ReloadRequest struct {
	Tables map[string][]schema.Row `json:"tables"`
}

func ReloadReqHandler(session *Session, raw []byte) Response {
	var req ReloadRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	if err := session.Reload(req.Tables); err != nil {
		return NewErrorResponse(http.StatusBadRequest, err.Error())
	}

	changed, err := session.RunTurn()
	if err != nil {
		return NewErrorResponse(http.StatusInternalServerError, err.Error())
	}
	return NewResponse(http.StatusOK, "Reloaded table data", changed)
}

func ActionHandler(session *Session, action RequestAction, raw []byte) Response {
	switch action {
	case RequestActionTables:
		return TablesReqHandler(session)
	case RequestActionSelect:
		return SelectReqHandler(session, raw)
	case RequestActionClear:
		return ClearReqHandler(session, raw)
	case RequestActionReset:
		return ResetReqHandler(session)
	case RequestActionQuery:
		return QueryReqHandler(session)
	case RequestActionReload:
		return ReloadReqHandler(session, raw)
	default:
		return NewErrorResponse(http.StatusBadRequest, fmt.Sprintf("unknown action: %s", action))
	}
}
