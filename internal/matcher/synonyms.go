package matcher

// synonyms maps lowercased canonical field names to ordered lists of
// substrings commonly seen in carrier statement headers. Order matters:
// earlier synonyms are preferred. Extend the table rather than adding
// branches to BestMatch.
var synonyms = map[string][]string{
	"policyno": {
		"policy", "policy_number", "policynumber", "pol_no", "policy_no",
		"certificate", "cert no",
	},
	"phfirst": {
		"first name", "firstname", "first_name", "fname", "insured first",
	},
	"phlast": {
		"last name", "lastname", "last_name", "lname", "surname",
		"owner name", "insured name",
	},
	"premium": {
		"premium", "prem amt", "prem_amt", "prem", "mode premium",
	},
	"effectivedate": {
		"effective", "eff date", "eff_date", "issue date", "issue_date",
	},
	"termdate": {
		"term date", "termination", "term_date", "cancel date", "lapse date",
	},
	"commreceived": {
		"commission", "comm amt", "comm_amt", "comm paid", "comm",
	},
	"writingagentid": {
		"writing agent", "writing_agent", "agent id", "agent_id", "agent no",
		"agent number",
	},
	"trandate": {
		"tran date", "transaction date", "payment date", "process date",
		"pay date", "statement date",
	},
	"state": {
		"state", "issue st",
	},
	"issuer": {
		"carrier", "company", "issuer",
	},
}
