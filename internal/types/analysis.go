package types

// Call types the extraction model may assign.
const (
	CallRecruitmentScreening = "recruitment_screening"
	CallCandidateInquiry     = "candidate_inquiry"
	CallInterview            = "interview"
	CallFollowUp             = "follow_up"
	CallClientInquiry        = "client_inquiry"
	CallSupplier             = "supplier"
	CallPersonal             = "personal"
	CallSpam                 = "spam"
	CallOther                = "other"
)

// CallTypes is the closed set accepted by the extraction schema.
var CallTypes = []string{
	CallRecruitmentScreening,
	CallCandidateInquiry,
	CallInterview,
	CallFollowUp,
	CallClientInquiry,
	CallSupplier,
	CallPersonal,
	CallSpam,
	CallOther,
}

// RecruitmentRelevant reports whether a call of this type may create a
// candidate for an unknown number.
func RecruitmentRelevant(callType string) bool {
	switch callType {
	case CallRecruitmentScreening, CallCandidateInquiry, CallInterview, CallFollowUp:
		return true
	}
	return false
}

// Analysis is the validated structured extraction of one call.
type Analysis struct {
	CandidateName     *string  `json:"candidate_name"`
	ExperienceSummary *string  `json:"experience_summary"`
	Roles             []string `json:"roles"`
	Qualifications    []string `json:"qualifications"`
	DriverStatus      *string  `json:"driver_status"`
	DBSStatus         *string  `json:"dbs_status"`
	RightToWork       *string  `json:"right_to_work"`
	TrainingStatus    *string  `json:"training_status"`
	EarliestStartDate *string  `json:"earliest_start_date"`
	PreferredHours    *string  `json:"preferred_hours"`
	RedFlags          []string `json:"red_flags"`
	GreenFlags        []string `json:"green_flags"`
	QualityRating     int      `json:"quality_rating"`
	EnergyScore       int      `json:"energy_score"`
	FollowUpActions   []string `json:"follow_up_actions"`
	CallType          string   `json:"call_type"`
	CallOutcome       *string  `json:"call_outcome"`
	Summary           string   `json:"summary"`
	Transcript        *string  `json:"transcript,omitempty"`
}

// Str dereferences an optional string field.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
