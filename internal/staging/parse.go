package staging

import (
	"strconv"
	"strings"
)

// Each parser returns the record key and the typed record. An empty key means the
// record cannot be identified and is dropped.

func parseAccount(p payload) (string, Account) {
	a := Account{
		ID:        p.str("Id", "id"),
		Name:      p.str("Name", "name"),
		CreatedAt: p.time("CreatedDate", "created_at"),
	}
	return a.ID, a
}

func parseOpportunity(p payload) (string, Opportunity) {
	o := Opportunity{
		ID:            p.str("Id", "id"),
		AccountID:     p.str("AccountId", "account_id"),
		Name:          p.str("Name", "name"),
		StageName:     p.str("StageName", "stage_name"),
		IsWon:         p.boolean("IsWon", "is_won"),
		Amount:        p.decimal("Amount", "amount"),
		CloseDate:     Day(p.time("CloseDate", "close_date")),
		ContractStart: Day(p.time("Contract_Start_Date__c", "contract_start_date")),
		TermMonths:    p.integer("Contract_Term_Months__c", "contract_term_months"),
	}
	if !o.IsWon && strings.EqualFold(o.StageName, "Closed Won") {
		o.IsWon = true
	}
	return o.ID, o
}

func parseStripeCustomer(p payload) (string, StripeCustomer) {
	c := StripeCustomer{
		ID:                  p.str("id"),
		Name:                p.str("name", "description"),
		Email:               p.str("email"),
		SalesforceAccountID: p.str("metadata.salesforce_account_id", "metadata.sf_account_id"),
		CreatedAt:           p.time("created"),
	}
	return c.ID, c
}

func parseInvoice(p payload) (string, Invoice) {
	inv := Invoice{
		ID:              p.str("id"),
		CustomerID:      p.str("customer"),
		Status:          strings.ToLower(p.str("status")),
		AmountDue:       p.minorUnits("amount_due"),
		AmountPaid:      p.minorUnits("amount_paid"),
		AmountRemaining: p.minorUnits("amount_remaining"),
		Currency:        currency(p.str("currency")),
		CreatedAt:       p.time("created"),
		DueDate:         p.time("due_date"),
		PaidAt:          p.time("status_transitions.paid_at", "paid_at"),
	}
	return inv.ID, inv
}

func parseCharge(p payload) (string, Charge) {
	c := Charge{
		ID:         p.str("id"),
		CustomerID: p.str("customer"),
		Amount:     p.minorUnits("amount"),
		Currency:   currency(p.str("currency")),
		CreatedAt:  p.time("created"),
	}
	return c.ID, c
}

func parseRefund(p payload) (string, Refund) {
	r := Refund{
		ID:        p.str("id"),
		ChargeID:  p.str("charge"),
		Amount:    p.minorUnits("amount"),
		Currency:  currency(p.str("currency")),
		Status:    strings.ToLower(p.str("status")),
		CreatedAt: p.time("created"),
	}
	return r.ID, r
}

func parseDispute(p payload) (string, Dispute) {
	d := Dispute{
		ID:        p.str("id"),
		ChargeID:  p.str("charge"),
		Amount:    p.minorUnits("amount"),
		Currency:  currency(p.str("currency")),
		Status:    strings.ToLower(p.str("status")),
		CreatedAt: p.time("created"),
	}
	return d.ID, d
}

func parseIntacctCustomer(p payload) (string, IntacctCustomer) {
	c := IntacctCustomer{
		ID:                  p.str("CUSTOMERID", "customer_id"),
		Name:                p.str("NAME", "name"),
		SalesforceAccountID: p.str("SALESFORCE_ACCOUNT_ID", "salesforce_account_id"),
		CreatedAt:           p.time("WHENCREATED", "created_at"),
	}
	return c.ID, c
}

func parseRevenueEntry(p payload) (string, RevenueEntry) {
	e := RevenueEntry{
		ID:         p.str("RECORDNO", "record_no"),
		CustomerID: p.str("CUSTOMERID", "customer_id"),
		Amount:     p.decimal("AMOUNT", "amount").Abs(),
		TrType:     p.integer("TR_TYPE", "tr_type"),
		Posted:     strings.EqualFold(p.str("STATE", "state"), "posted"),
		EntryDate:  Day(p.time("ENTRY_DATE", "WHENPOSTED", "entry_date")),
		Currency:   currency(p.str("CURRENCY", "currency")),
	}
	if e.TrType != -1 {
		e.TrType = 1
	}
	return e.ID, e
}

func parseOrganization(p payload) (string, Organization) {
	o := Organization{
		ID:                  p.str("id"),
		Name:                p.str("name"),
		SalesforceAccountID: p.str("organization_fields.salesforce_account_id", "salesforce_account_id"),
		CreatedAt:           p.time("created_at"),
	}
	return o.ID, o
}

func parseTicket(p payload) (string, Ticket) {
	t := Ticket{
		ID:               p.str("id"),
		OrganizationID:   p.str("organization_id"),
		Priority:         strings.ToLower(p.str("priority")),
		Status:           strings.ToLower(p.str("status")),
		SupportTier:      parseTier(p.str("support_tier", "custom_fields.support_tier")),
		TimeSpentMinutes: p.decimal("time_spent_minutes", "custom_fields.time_spent_minutes"),
		CreatedAt:        p.time("created_at"),
		UpdatedAt:        p.time("updated_at"),
		SolvedAt:         p.time("solved_at"),
	}
	return t.ID, t
}

func parseHarvestClient(p payload) (string, HarvestClient) {
	c := HarvestClient{
		ID:                  p.str("id"),
		Name:                p.str("name"),
		SalesforceAccountID: p.str("salesforce_account_id", "custom_fields.salesforce_account_id"),
		CreatedAt:           p.time("created_at"),
	}
	return c.ID, c
}

func parseProject(p payload) (string, Project) {
	pr := Project{
		ID:          p.str("id"),
		ClientID:    p.str("client_id", "client"),
		Name:        p.str("name"),
		BudgetHours: p.decimal("budget"),
		CreatedAt:   p.time("created_at"),
	}
	return pr.ID, pr
}

func parseTimeEntry(p payload) (string, TimeEntry) {
	e := TimeEntry{
		ID:        p.str("id"),
		ProjectID: p.str("project_id", "project"),
		ClientID:  p.str("client_id", "client"),
		SpentDate: Day(p.time("spent_date")),
		Hours:     p.decimal("hours"),
		CostRate:  p.decimal("cost_rate"),
		Billable:  p.boolean("billable"),
	}
	return e.ID, e
}

func parseIssue(p payload) (string, Issue) {
	i := Issue{
		Key:              p.str("key"),
		AccountKey:       p.str("fields.customer_account_key", "account_key"),
		TicketID:         p.str("fields.zendesk_ticket_id", "zendesk_ticket_id"),
		TimeSpentSeconds: p.decimal("fields.timespent", "time_spent_seconds"),
		CreatedAt:        p.time("fields.created", "created"),
		UpdatedAt:        p.time("fields.updated", "updated"),
		ResolvedAt:       p.time("fields.resolutiondate", "resolved"),
	}
	return i.Key, i
}

func parseMixpanelCompany(p payload) (string, MixpanelCompany) {
	c := MixpanelCompany{
		ID:                  p.str("$group_id", "company_id", "id"),
		Name:                p.str("$properties.$name", "name"),
		SalesforceAccountID: p.str("$properties.salesforce_account_id", "salesforce_account_id"),
		CreatedAt:           p.time("$properties.$created", "created_at"),
	}
	return c.ID, c
}

func parseEvent(p payload) (string, Event) {
	e := Event{
		ID:        p.str("properties.$insert_id", "insert_id"),
		CompanyID: p.str("properties.company_id", "company_id"),
		Name:      p.str("event"),
		Time:      p.time("properties.time", "time"),
	}
	return e.ID, e
}

// parseTier accepts "2", "tier_2" and "Tier 2"; anything else is untiered (0)
func parseTier(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimLeft(strings.TrimPrefix(s, "tier"), "_ -")
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 3 {
		return 0
	}
	return n
}

func currency(c string) string {
	if c == "" {
		return "GBP"
	}
	return strings.ToUpper(c)
}
