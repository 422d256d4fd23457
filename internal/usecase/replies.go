package usecase

import (
	"fmt"
	"strings"
)

const (
	msgWelcome          = "Welcome to Smart Rental Inquiry Service!\n\nPlease provide the customer's name or company name for verification."
	msgSessionEnded     = "Session ended. Type 'Hi' to start a new inquiry."
	msgSessionRestarted = "Session restarted. Type 'Hi' to begin a new inquiry."
	msgGenericError     = "Sorry, something went wrong. Please try again later or contact support."

	msgNoName            = "I couldn't identify a name. Please provide the customer's company name or customer name."
	msgNameNotFound      = "Customer name not found. Please check the spelling and try again, or type 'Start Over'."
	msgNameNotFoundFinal = "Customer name not found in records after multiple attempts. Session ended. Type 'Hi' to start over."
	msgInvalidChoice     = "Please reply with a valid number for the chosen name."
	msgChoiceOutOfRange  = "Number out of range. Please pick one of the listed options."

	msgDocumentMenu        = "Please specify which document:\n- Contract Report\n- Account Statement"
	msgStatementScope      = "Account Statement for:\n- All Contracts\n- One Contract\n\nWhich one?"
	msgStatementScopeRetry = "Please choose:\n- All Contracts\n- One Contract"
	msgCancelled           = "Cancelled. Need anything else?\n- Contract Report\n- Account Statement\n- End"
	msgFollowUpMenu        = "Need anything else?\n- Contract Report\n- Account Statement\n- End"

	msgEnterContractID       = "Enter the Contract ID:"
	msgContractNotFound      = "Contract ID not found. Please check and re-enter, or type 'Start Over'."
	msgContractNotFoundFinal = "Contract ID not found after multiple attempts. Session ended. Type 'Hi' to start over."
)

// GenericErrorReply is sent when a turn fails before a reply exists.
const GenericErrorReply = msgGenericError

func foundReply(name string) string {
	return fmt.Sprintf("Found: %s\n\nWhat document do you need?\n- Contract Report\n- Account Statement", name)
}

func choicesReply(options []string) string {
	var b strings.Builder
	for i, o := range options {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, o)
	}
	return fmt.Sprintf("I found multiple matches (%d). Please reply with a number:\n%s", len(options), b.String())
}

func singleReadyReply(contractID, link string) string {
	return fmt.Sprintf("Account statement for %s is ready!\n\n%s\n\nNeed anything else?", contractID, link)
}

func multiReadyReply(customer string, count int, link string) string {
	return fmt.Sprintf("Account statements for %s are ready!\n\nContracts: %d\n\n%s\n\nNeed anything else? Contract Report, Account Statement, or End?", customer, count, link)
}

func noContractsReply(customer string) string {
	return fmt.Sprintf("No contracts found for %s.", customer)
}
