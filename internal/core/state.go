package core

import "slices"

type (
	// Session holds the per-run selections of the person using the ledger.
	// Only CurrentUser outlives the process.
	Session struct {
		CurrentUser        *User
		SelectedCustomerID ID
		DashboardFilter    Window
	}

	// State is the whole ledger: the four collections plus the session.
	State struct {
		Users        []User
		Customers    []Customer
		Transactions []Transaction
		Categories   []string
		Session      Session
	}

	// Document is the export/backup shape of a State.
	Document struct {
		Users        []User        `json:"users"`
		Customers    []Customer    `json:"customers"`
		Transactions []Transaction `json:"transactions"`
		Categories   []string      `json:"categories"`
		CurrentUser  *User         `json:"currentUser"`
	}
)

func DefaultUsers() []User {
	return []User{
		{ID: "1", Name: "Masroor Anwar"},
		{ID: "2", Name: "Mansoor Anwar"},
	}
}

func DefaultCategories() []string {
	return []string{"Goods", "Cash Loan", "Service", "Payment"}
}

// NewState returns the state of a ledger that has never been saved.
func NewState() State {
	s := State{
		Users:        DefaultUsers(),
		Customers:    []Customer{},
		Transactions: []Transaction{},
		Categories:   DefaultCategories(),
		Session:      Session{DashboardFilter: DefaultWindow},
	}
	s.EnsureCurrentUser()
	return s
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	c := s
	c.Users = slices.Clone(s.Users)
	c.Customers = make([]Customer, len(s.Customers))
	for i, cu := range s.Customers {
		cu.Legacy = slices.Clone(cu.Legacy)
		c.Customers[i] = cu
	}
	c.Transactions = slices.Clone(s.Transactions)
	c.Categories = slices.Clone(s.Categories)
	if s.Session.CurrentUser != nil {
		u := *s.Session.CurrentUser
		c.Session.CurrentUser = &u
	}
	return c
}

func (s *State) FindUser(id ID) (User, bool) {
	i := slices.IndexFunc(s.Users, func(u User) bool { return u.ID == id })
	if i < 0 {
		return User{}, false
	}
	return s.Users[i], true
}

func (s *State) FindCustomer(id ID) (Customer, bool) {
	i := slices.IndexFunc(s.Customers, func(c Customer) bool { return c.ID == id })
	if i < 0 {
		return Customer{}, false
	}
	return s.Customers[i], true
}

// EnsureCurrentUser points the session at the first user when it is unset or
// refers to a user that no longer exists.
func (s *State) EnsureCurrentUser() {
	if cu := s.Session.CurrentUser; cu != nil {
		if _, ok := s.FindUser(cu.ID); ok {
			return
		}
	}
	if len(s.Users) == 0 {
		s.Session.CurrentUser = nil
		return
	}
	u := s.Users[0]
	s.Session.CurrentUser = &u
}

// AddCategory appends a new suggestion and reports whether the set grew.
func (s *State) AddCategory(name string) bool {
	if name == "" || slices.Contains(s.Categories, name) {
		return false
	}
	s.Categories = append(s.Categories, name)
	return true
}

func (s State) Document() Document {
	c := s.Clone()
	return Document{
		Users:        c.Users,
		Customers:    c.Customers,
		Transactions: c.Transactions,
		Categories:   c.Categories,
		CurrentUser:  c.Session.CurrentUser,
	}
}
