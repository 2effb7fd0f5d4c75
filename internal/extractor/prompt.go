package extractor

import (
	"fmt"
	"time"
)

// systemPrompt is sent as the system role where the provider supports one.
const systemPrompt = `You are a recruitment assistant for a UK domiciliary care agency. You read phone calls between recruiters and care workers and return structured JSON only. Never add commentary outside the JSON object.`

const promptTemplate = `Analyse this phone call for the recruiting team.

TODAY'S DATE: %s (%s)
CALLER PHONE: %s

DATE RULES
- earliest_start_date must be an absolute date in YYYY-MM-DD format, or null.
- Resolve relative phrases against today's date: "two weeks" means today + 14 days,
  "next Monday" means the first Monday after today, "ASAP" or "immediately" means today.
- Never return a relative phrase such as "two weeks" in earliest_start_date.

FIELD RULES
- Use null when the call does not say. Use "Unknown" only when the topic came up but was unclear.
- driver_status: "yes", "no", "learning" or "Unknown" (does the candidate drive and have a car).
- dbs_status: "clear", "pending", "update_service", "none" or "Unknown".
- right_to_work: "yes", "no", "sponsorship_needed" or "Unknown".
- training_status: e.g. "care_certificate", "in_progress", "none" or "Unknown".
- roles: job roles discussed, e.g. "home carer", "senior carer", "live-in carer".
- qualifications: named qualifications, e.g. "NVQ Level 2", "Care Certificate".
- energy_score: integer 1 to 10 for the candidate's enthusiasm and engagement.
- quality_rating: integer 1 to 5 for how strong a candidate this is.
- call_type: one of recruitment_screening, candidate_inquiry, interview, follow_up,
  client_inquiry, supplier, personal, spam, other.
- summary: a two or three sentence recap for the recruiter.
%s
RETURN ONLY THIS JSON OBJECT
{
  "candidate_name": null,
  "experience_summary": null,
  "roles": [],
  "qualifications": [],
  "driver_status": null,
  "dbs_status": null,
  "right_to_work": null,
  "training_status": null,
  "earliest_start_date": null,
  "preferred_hours": null,
  "red_flags": [],
  "green_flags": [],
  "quality_rating": 3,
  "energy_score": 5,
  "follow_up_actions": [],
  "call_type": "other",
  "call_outcome": null,
  "summary": ""%s
}

%s`

// BuildPrompt renders the extraction prompt. An empty transcript means the
// audio is attached to the request and the model must transcribe it too.
func BuildPrompt(today time.Time, phone, transcript string) string {
	audioRule, transcriptField, body := "", "", "TRANSCRIPT\n"+transcript
	if transcript == "" {
		audioRule = "- The call audio is attached. Put a plain-text transcript of it in the transcript field.\n"
		transcriptField = ",\n  \"transcript\": \"\""
		body = "The call audio is attached to this message."
	}
	if phone == "" {
		phone = "unknown"
	}
	return fmt.Sprintf(promptTemplate,
		today.Format(dateLayout), today.Weekday(), phone,
		audioRule, transcriptField, body)
}
