package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"khata/internal/core"
	"khata/internal/log"
	"khata/internal/reconcile"
)

type (
	usersResponse struct {
		Users       []core.User `json:"users"`
		CurrentUser *core.User  `json:"currentUser"`
	}

	customerSummary struct {
		core.Customer
		Balance        decimal.Decimal    `json:"balance"`
		BalanceDisplay string             `json:"balanceDisplay"`
		Status         core.BalanceStatus `json:"status"`
	}

	customersResponse struct {
		Customers              []customerSummary `json:"customers"`
		TotalReceivable        decimal.Decimal   `json:"totalReceivable"`
		TotalReceivableDisplay string            `json:"totalReceivableDisplay"`
	}

	customerDetailResponse struct {
		customerSummary
		History []core.Transaction `json:"history"`
	}

	transactionResponse struct {
		Transaction core.Transaction `json:"transaction"`
		Balance     decimal.Decimal  `json:"balance"`
	}

	debtorEntry struct {
		core.Debtor
		DaysAgo int `json:"daysAgo"`
	}

	dashboardResponse struct {
		Filter          core.Window        `json:"filter"`
		CashFlow        core.CashFlow      `json:"cashFlow"`
		CashInDisplay   string             `json:"cashInDisplay"`
		CashOutDisplay  string             `json:"cashOutDisplay"`
		Recent          []core.RecentEntry `json:"recent"`
		Debtors         []debtorEntry      `json:"debtors"`
		TotalReceivable decimal.Decimal    `json:"totalReceivable"`
	}

	importResponse struct {
		Result  reconcile.Result `json:"result"`
		Version int64            `json:"version"`
	}
)

func (s *Server) summarize(c core.Customer) customerSummary {
	bal := s.store.Balance(c.ID)
	return customerSummary{
		Customer:       c,
		Balance:        bal,
		BalanceDisplay: core.FormatCurrency(bal.Abs()),
		Status:         core.StatusOf(bal),
	}
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	resp := usersResponse{Users: s.store.Users()}
	if u, ok := s.store.CurrentUser(); ok {
		resp.CurrentUser = &u
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSwitchUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID core.ID `json:"id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	u, err := s.store.SwitchUser(r.Context(), req.ID)
	if err != nil && u.ID == "" {
		writeError(w, r, err, nil)
		return
	}
	respond(w, r, http.StatusOK, map[string]core.User{"currentUser": u}, err)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers := s.store.Customers()
	resp := customersResponse{Customers: make([]customerSummary, 0, len(customers))}
	for _, c := range customers {
		resp.Customers = append(resp.Customers, s.summarize(c))
	}
	resp.TotalReceivable = s.store.TotalReceivable()
	resp.TotalReceivableDisplay = core.FormatCurrency(resp.TotalReceivable)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Mobile string `json:"mobile"`
		NIC    string `json:"nic"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	c, err := s.store.AddCustomer(r.Context(), sanitizeInput(req.Name), sanitizeInput(req.Mobile), sanitizeInput(req.NIC))
	if err != nil && c.ID == "" {
		writeError(w, r, err, nil)
		return
	}
	respond(w, r, http.StatusCreated, c, err)
}

// handleCustomerDetail selects the customer for the session and returns it
// with its history. An unknown id leaves the selection alone.
func (s *Server) handleCustomerDetail(w http.ResponseWriter, r *http.Request) {
	id := core.ID(r.PathValue("id"))
	if err := s.store.SelectCustomer(id); err != nil {
		writeError(w, r, err, nil)
		return
	}
	c, err := s.store.Customer(id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	history, err := s.store.History(id)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	if history == nil {
		history = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, customerDetailResponse{customerSummary: s.summarize(c), History: history})
}

func (s *Server) handleRemoveCustomer(w http.ResponseWriter, r *http.Request) {
	err := s.store.RemoveCustomer(r.Context(), core.ID(r.PathValue("id")))
	respond(w, r, http.StatusNoContent, nil, err)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount   flexString `json:"amount"`
		Type     string     `json:"type"`
		Note     string     `json:"note"`
		Category string     `json:"category"`
		Date     string     `json:"date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	txType, err := core.ParseTxType(req.Type)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	tx, err := s.store.AddTransaction(r.Context(), core.TransactionInput{
		CustomerID: core.ID(r.PathValue("id")),
		Amount:     string(req.Amount),
		Type:       txType,
		Note:       sanitizeInput(req.Note),
		Category:   sanitizeInput(req.Category),
		Date:       date,
	})
	if err != nil && tx.ID == "" {
		writeError(w, r, err, nil)
		return
	}
	respond(w, r, http.StatusCreated, transactionResponse{Transaction: tx, Balance: s.store.Balance(tx.CustomerID)}, err)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"categories": s.store.Categories()})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if f := r.URL.Query().Get("filter"); f != "" {
		if err := s.store.SetDashboardFilter(core.Window(f)); err != nil {
			writeError(w, r, err, nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.dashboard(r))
}

// dashboard builds the dashboard for the session filter. Results are cached
// per filter, store version and day, so any mutation invalidates them.
func (s *Server) dashboard(r *http.Request) dashboardResponse {
	filter := s.store.DashboardFilter()
	now := s.store.Now()
	key := string(filter) + "|" + now.Format("2006-01-02") + "|" + strconv.FormatInt(s.store.Version(), 10)

	if d, ok := s.dashboardCache.Get(key); ok {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Dashboard cache hit", log.FieldFilter, string(filter))
		return d
	}

	flow := s.store.CashFlow(filter)
	d := dashboardResponse{
		Filter:          filter,
		CashFlow:        flow,
		CashInDisplay:   core.FormatCurrency(flow.CashIn),
		CashOutDisplay:  core.FormatCurrency(flow.CashOut),
		Recent:          s.store.Recent(s.recentLimit),
		TotalReceivable: s.store.TotalReceivable(),
	}
	for _, debtor := range s.store.OldestDebtors(s.debtorsLimit) {
		d.Debtors = append(d.Debtors, debtorEntry{Debtor: debtor, DaysAgo: debtor.DaysSince(now)})
	}
	if d.Debtors == nil {
		d.Debtors = []debtorEntry{}
	}
	s.dashboardCache.Set(key, d)
	return d
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name, doc := s.store.Export(s.store.Now())
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)

	log.FromContext(r.Context()).InfoContext(r.Context(), "Ledger exported",
		log.FieldOperation, log.OpExport, "filename", name, "bytes", len(body))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	res, err := s.importer.ImportReader(r.Context(), r.Body)
	s.writeImport(w, r, res, err)
}

func (s *Server) handleImportURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	res, err := s.importer.ImportFromURL(r.Context(), req.URL)
	s.writeImport(w, r, res, err)
}

// writeImport answers an import. An import replaces the whole ledger, so
// every cached dashboard is dropped.
func (s *Server) writeImport(w http.ResponseWriter, r *http.Request, res reconcile.Result, err error) {
	if err == nil || errors.Is(err, core.ErrPersistence) {
		s.dashboardCache.Purge()
	}
	respond(w, r, http.StatusOK, importResponse{Result: res, Version: s.store.Version()}, err)
}
