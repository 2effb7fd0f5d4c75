package extractor

// analysisSchema is the JSON Schema every model response must satisfy
// before it is decoded into types.Analysis.
const analysisSchema = `{
  "title": "CallAnalysis",
  "type": "object",
  "required": ["call_type", "summary", "energy_score", "quality_rating"],
  "properties": {
    "candidate_name":      {"type": ["string", "null"]},
    "experience_summary":  {"type": ["string", "null"]},
    "roles":               {"type": ["array", "null"], "items": {"type": "string"}},
    "qualifications":      {"type": ["array", "null"], "items": {"type": "string"}},
    "driver_status":       {"type": ["string", "null"]},
    "dbs_status":          {"type": ["string", "null"]},
    "right_to_work":       {"type": ["string", "null"]},
    "training_status":     {"type": ["string", "null"]},
    "earliest_start_date": {"type": ["string", "null"], "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"},
    "preferred_hours":     {"type": ["string", "null"]},
    "red_flags":           {"type": ["array", "null"], "items": {"type": "string"}},
    "green_flags":         {"type": ["array", "null"], "items": {"type": "string"}},
    "quality_rating":      {"type": "integer", "minimum": 1, "maximum": 5},
    "energy_score":        {"type": "integer", "minimum": 1, "maximum": 10},
    "follow_up_actions":   {"type": ["array", "null"], "items": {"type": "string"}},
    "call_type": {
      "type": "string",
      "enum": ["recruitment_screening", "candidate_inquiry", "interview", "follow_up",
               "client_inquiry", "supplier", "personal", "spam", "other"]
    },
    "call_outcome": {"type": ["string", "null"]},
    "summary":      {"type": "string", "minLength": 1},
    "transcript":   {"type": ["string", "null"]}
  }
}`
