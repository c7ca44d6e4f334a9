package smpp

import "fmt"

// CommandStatus is the command_status carried by every response PDU.
// The values are the SMPP 3.4 error code table and must not be renumbered.
type CommandStatus uint32

const (
	ESME_ROK              CommandStatus = 0x00000000 // No Error
	ESME_RINVMSGLEN       CommandStatus = 0x00000001 // Message Length is invalid
	ESME_RINVCMDLEN       CommandStatus = 0x00000002 // Command Length is invalid
	ESME_RINVCMDID        CommandStatus = 0x00000003 // Invalid Command ID
	ESME_RINVBNDSTS       CommandStatus = 0x00000004 // Incorrect BIND Status for given command
	ESME_RALYBND          CommandStatus = 0x00000005 // ESME Already in Bound State
	ESME_RINVPRTFLG       CommandStatus = 0x00000006 // Invalid Priority Flag
	ESME_RINVREGDLVFLG    CommandStatus = 0x00000007 // Invalid Registered Delivery Flag
	ESME_RSYSERR          CommandStatus = 0x00000008 // System Error
	ESME_RINVSRCADR       CommandStatus = 0x0000000A // Invalid Source Address
	ESME_RINVDSTADR       CommandStatus = 0x0000000B // Invalid Dest Addr
	ESME_RINVMSGID        CommandStatus = 0x0000000C // Message ID is invalid
	ESME_RBINDFAIL        CommandStatus = 0x0000000D // Bind Failed
	ESME_RINVPASWD        CommandStatus = 0x0000000E // Invalid Password
	ESME_RINVSYSID        CommandStatus = 0x0000000F // Invalid System ID
	ESME_RCANCELFAIL      CommandStatus = 0x00000011 // Cancel SM Failed
	ESME_RREPLACEFAIL     CommandStatus = 0x00000013 // Replace SM Failed
	ESME_RMSGQFUL         CommandStatus = 0x00000014 // Message Queue Full
	ESME_RINVSERTYP       CommandStatus = 0x00000015 // Invalid Service Type
	ESME_RINVNUMDESTS     CommandStatus = 0x00000033 // Invalid number of destinations
	ESME_RINVDLNAME       CommandStatus = 0x00000034 // Invalid Distribution List name
	ESME_RINVDESTFLAG     CommandStatus = 0x00000040 // Destination flag is invalid (submit_multi)
	ESME_RINVSUBREP       CommandStatus = 0x00000042 // Invalid 'submit with replace' request
	ESME_RINVESMCLASS     CommandStatus = 0x00000043 // Invalid esm_class field data
	ESME_RCNTSUBDL        CommandStatus = 0x00000044 // Cannot Submit to Distribution List
	ESME_RSUBMITFAIL      CommandStatus = 0x00000045 // submit_sm or submit_multi failed
	ESME_RINVSRCTON       CommandStatus = 0x00000048 // Invalid Source address TON
	ESME_RINVSRCNPI       CommandStatus = 0x00000049 // Invalid Source address NPI
	ESME_RINVDSTTON       CommandStatus = 0x00000050 // Invalid Destination address TON
	ESME_RINVDSTNPI       CommandStatus = 0x00000051 // Invalid Destination address NPI
	ESME_RINVSYSTYP       CommandStatus = 0x00000053 // Invalid system_type field
	ESME_RINVREPFLAG      CommandStatus = 0x00000054 // Invalid replace_if_present flag
	ESME_RINVNUMMSGS      CommandStatus = 0x00000055 // Invalid number of messages
	ESME_RTHROTTLED       CommandStatus = 0x00000058 // Throttling error (ESME has exceeded allowed message limits)
	ESME_RINVSCHED        CommandStatus = 0x00000061 // Invalid Scheduled Delivery Time
	ESME_RINVEXPIRY       CommandStatus = 0x00000062 // Invalid message validity period (Expiry time)
	ESME_RINVDFTMSGID     CommandStatus = 0x00000063 // Predefined Message Invalid or Not Found
	ESME_RX_T_APPN        CommandStatus = 0x00000064 // ESME Receiver Temporary App Error Code
	ESME_RX_P_APPN        CommandStatus = 0x00000065 // ESME Receiver Permanent App Error Code
	ESME_RX_R_APPN        CommandStatus = 0x00000066 // ESME Receiver Reject Message Error Code
	ESME_RQUERYFAIL       CommandStatus = 0x00000067 // query_sm request failed
	ESME_RINVOPTPARSTREAM CommandStatus = 0x000000C0 // Error in the optional part of the PDU Body
	ESME_ROPTPARNOTALLWD  CommandStatus = 0x000000C1 // Optional Parameter not allowed
	ESME_RINVPARLEN       CommandStatus = 0x000000C2 // Invalid Parameter Length
	ESME_RMISSINGOPTPARAM CommandStatus = 0x000000C3 // Expected Optional Parameter missing
	ESME_RINVOPTPARAMVAL  CommandStatus = 0x000000C4 // Invalid Optional Parameter Value
	ESME_RDELIVERYFAILURE CommandStatus = 0x000000FE // Delivery Failure (used for data_sm_resp)
	ESME_RUNKNOWNERR      CommandStatus = 0x000000FF // Unknown Error
)

var statusText = map[CommandStatus]string{
	ESME_ROK:              "No Error",
	ESME_RINVMSGLEN:       "Message Length is invalid",
	ESME_RINVCMDLEN:       "Command Length is invalid",
	ESME_RINVCMDID:        "Invalid Command ID",
	ESME_RINVBNDSTS:       "Incorrect BIND Status for given command",
	ESME_RALYBND:          "ESME Already in Bound State",
	ESME_RINVPRTFLG:       "Invalid Priority Flag",
	ESME_RINVREGDLVFLG:    "Invalid Registered Delivery Flag",
	ESME_RSYSERR:          "System Error",
	ESME_RINVSRCADR:       "Invalid Source Address",
	ESME_RINVDSTADR:       "Invalid Dest Addr",
	ESME_RINVMSGID:        "Message ID is invalid",
	ESME_RBINDFAIL:        "Bind Failed",
	ESME_RINVPASWD:        "Invalid Password",
	ESME_RINVSYSID:        "Invalid System ID",
	ESME_RCANCELFAIL:      "Cancel SM Failed",
	ESME_RREPLACEFAIL:     "Replace SM Failed",
	ESME_RMSGQFUL:         "Message Queue Full",
	ESME_RINVSERTYP:       "Invalid Service Type",
	ESME_RINVNUMDESTS:     "Invalid number of destinations",
	ESME_RINVDLNAME:       "Invalid Distribution List name",
	ESME_RINVDESTFLAG:     "Destination flag is invalid",
	ESME_RINVSUBREP:       "Invalid 'submit with replace' request",
	ESME_RINVESMCLASS:     "Invalid esm_class field data",
	ESME_RCNTSUBDL:        "Cannot Submit to Distribution List",
	ESME_RSUBMITFAIL:      "submit_sm or submit_multi failed",
	ESME_RINVSRCTON:       "Invalid Source address TON",
	ESME_RINVSRCNPI:       "Invalid Source address NPI",
	ESME_RINVDSTTON:       "Invalid Destination address TON",
	ESME_RINVDSTNPI:       "Invalid Destination address NPI",
	ESME_RINVSYSTYP:       "Invalid system_type field",
	ESME_RINVREPFLAG:      "Invalid replace_if_present flag",
	ESME_RINVNUMMSGS:      "Invalid number of messages",
	ESME_RTHROTTLED:       "Throttling error",
	ESME_RINVSCHED:        "Invalid Scheduled Delivery Time",
	ESME_RINVEXPIRY:       "Invalid message validity period",
	ESME_RINVDFTMSGID:     "Predefined Message Invalid or Not Found",
	ESME_RX_T_APPN:        "ESME Receiver Temporary App Error Code",
	ESME_RX_P_APPN:        "ESME Receiver Permanent App Error Code",
	ESME_RX_R_APPN:        "ESME Receiver Reject Message Error Code",
	ESME_RQUERYFAIL:       "query_sm request failed",
	ESME_RINVOPTPARSTREAM: "Error in the optional part of the PDU Body",
	ESME_ROPTPARNOTALLWD:  "Optional Parameter not allowed",
	ESME_RINVPARLEN:       "Invalid Parameter Length",
	ESME_RMISSINGOPTPARAM: "Expected Optional Parameter missing",
	ESME_RINVOPTPARAMVAL:  "Invalid Optional Parameter Value",
	ESME_RDELIVERYFAILURE: "Delivery Failure",
	ESME_RUNKNOWNERR:      "Unknown Error",
}

// Ok reports whether the status is ESME_ROK.
func (s CommandStatus) Ok() bool { return s == ESME_ROK }

// Error makes a non-OK status usable as an error value.
func (s CommandStatus) Error() string {
	if text, ok := statusText[s]; ok {
		return fmt.Sprintf("smpp: %s (0x%08X)", text, uint32(s))
	}
	return fmt.Sprintf("smpp: command status 0x%08X", uint32(s))
}

func (s CommandStatus) String() string {
	if text, ok := statusText[s]; ok {
		return text
	}
	return fmt.Sprintf("0x%08X", uint32(s))
}
