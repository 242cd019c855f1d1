package privacy

import (
	"strings"

	"bluecast/internal/constants"
	gwtypes "bluecast/pkg/gateway/types"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits.
// Example: "+15551234567" -> "+*******4567"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	if strings.HasPrefix(phone, "+") {
		if len(phone) <= 5 {
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-5) + phone[len(phone)-4:]
	}

	return maskTail(phone, constants.DefaultPhoneMaskLength)
}

// MaskChatGUID hides the address part of a chat GUID while keeping the
// service tag readable. Example: "iMessage;-;+15551234567" ->
// "iMessage;-;+*******4567"
func MaskChatGUID(chatGUID string) string {
	if chatGUID == "" {
		return ""
	}

	if idx := strings.Index(chatGUID, gwtypes.ServiceSeparator); idx >= 0 {
		service := chatGUID[:idx]
		address := chatGUID[idx+len(gwtypes.ServiceSeparator):]
		return service + gwtypes.ServiceSeparator + MaskPhoneNumber(address)
	}

	return maskTail(chatGUID, constants.DefaultPhoneMaskLength)
}

// MaskMessageID masks a gateway message GUID, keeping the last 8 characters
// for correlation in logs.
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}
	return maskTail(messageID, constants.DefaultMessageIDLength)
}

// MaskMemberID masks a member reference.
func MaskMemberID(memberID string) string {
	if memberID == "" {
		return ""
	}
	return maskTail(memberID, constants.DefaultPhoneMaskLength)
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		switch k {
		case "phone", "phone_number", "from", "to", "address", "routing":
			masked[k] = MaskPhoneNumber(s)
		case "chat_guid", "chatGuid", "chat":
			masked[k] = MaskChatGUID(s)
		case "message_id", "gateway_id", "guid", "temp_guid":
			masked[k] = MaskMessageID(s)
		case "member_id", "memberId":
			masked[k] = MaskMemberID(s)
		default:
			masked[k] = v
		}
	}

	return masked
}

func maskTail(s string, visible int) string {
	if len(s) <= visible {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-visible) + s[len(s)-visible:]
}
