package classifier

// domainKeywords scores text per domain: strong hits count double, weak hits
// single, strong hits in the filename add five.
var domainKeywords = map[string]struct {
	Strong []string
	Weak   []string
}{
	"Technology": {
		Strong: []string{"uav", "drone", "robot", "robotics", "unmanned", "quadcopter", "hexacopter", "flight",
			"web application", "website", "web development", "web design",
			"cloud computing", "cloud infrastructure", "devops", "docker", "kubernetes",
			"aws", "azure", "gcp", "cloud platform", "serverless",
			"database architecture", "data warehouse", "nosql", "mongodb", "postgres", "mysql", "redis", "elasticsearch",
			"api architecture", "rest api", "api design", "api development",
			"infrastructure", "infrastructure as code", "terraform", "ansible",
			"ssl", "tls", "ssl certificate", "tls certificate", "encryption", "authentication protocol", "authorization",
			"cipher", "cryptography", "symmetric", "asymmetric", "decryption", "hashing", "aes", "rsa", "sha",
			"git workflow", "version control system", "ci/cd pipeline", "jenkins", "gitlab ci", "github actions",
			"iot", "iot device", "sensor", "edge computing", "embedded system",
			"network", "networking", "firewall", "proxy", "load balancer",
			"deployment", "containerization", "microservice architecture"},
		Weak: []string{"tech", "technology", "system", "platform", "solution", "tool", "hardware"},
	},
	"Code": {
		Strong: []string{"backend development", "backend code", "backend service", "api development",
			"api endpoint", "rest api", "rest architecture", "graphql", "grpc",
			"nodejs", "express", "django", "flask", "fastapi", "spring", "java",
			"react", "vue", "angular", "frontend development", "frontend code",
			"jsx", "tsx", "html", "css", "javascript", "typescript",
			"algorithm", "data structure", "sorting", "searching", "recursion",
			"unit test", "integration test", "testing", "test case",
			"database", "sql", "nosql", "orm", "query", "schema",
			"function", "method", "class", "object", "async", "await",
			"authentication", "authorization", "middleware", "error handling",
			"array", "list", "dictionary", "set", "tuple", "hash",
			"tree", "graph", "binary", "traversal", "bfs", "dfs",
			"refactor", "optimize", "debug", "logging", "cache",
			"time complexity", "space complexity", "big o", "dynamic programming",
			"inheritance", "polymorphism", "encapsulation", "abstraction",
			"decorator", "closure", "lambda", "functional programming",
			"swagger", "openapi", "documentation", "code review", "test driven"},
		Weak: []string{"code", "programming", "script", "logic", "development", "source"},
	},
	"Finance": {
		Strong: []string{"revenue", "profit", "loss", "cost", "budget", "budgeting", "forecast", "forecasting",
			"investment", "roi", "return on investment", "financial", "accounting", "bookkeeping",
			"balance sheet", "income statement", "cash flow", "statement of cash flows", "fiscal",
			"audit", "auditor", "auditing", "stock", "equity", "dividend", "dividend yield",
			"payroll", "salary", "wage", "compensation", "benefits", "deduction", "withholding",
			"expense", "expense report", "reimbursement", "invoice", "receipt",
			"tax", "taxation", "tax return", "irs", "filing", "deadline",
			"depreciation", "amortization", "asset", "liability", "net worth",
			"capital", "capital expenditure", "operating expense", "opex", "capex",
			"maintenance", "maintenance cost", "repair", "repair cost", "upkeep",
			"accounting standard", "gaap", "ifrs", "fasb", "sec", "sarbanes oxley",
			"quarterly", "annual", "fiscal year", "reporting period", "financial statement"},
		Weak: []string{"money", "business", "financial", "payment", "transaction", "account", "ledger"},
	},
	"Education": {
		Strong: []string{"course", "curriculum", "lesson", "module", "unit", "chapter", "section",
			"assignment", "homework", "worksheet", "exercise", "problem", "question",
			"quiz", "exam", "test", "assessment", "evaluation", "grading", "grade",
			"solution", "answer", "explanation", "tutorial", "guide", "handbook",
			"learning objective", "learning outcome", "prerequisite", "syllabus",
			"lecture", "classroom", "seminar", "workshop", "lab", "laboratory",
			"teaching", "instruction", "pedagogy", "didactic", "educational", "academic",
			"student", "learner", "pupil", "scholar", "teacher", "instructor", "professor",
			"school", "university", "college", "academy", "institute", "institution",
			"semester", "quarter", "year", "academic year", "school year", "term",
			"grade level", "elementary", "middle school", "high school", "secondary",
			"python course", "programming course", "math course", "science course",
			"numpy", "pandas", "matplotlib", "seaborn", "plotly", "sklearn", "scikit-learn",
			"tensorflow", "keras", "pytorch", "torch", "deep learning", "machine learning",
			"neural network", "cnn", "rnn", "lstm", "transformer", "model", "training",
			"dataset", "data", "analysis", "statistics", "statistical", "probability",
			"supervised learning", "unsupervised learning", "reinforcement learning",
			"classification", "regression", "clustering", "dimensionality reduction",
			"feature engineering", "feature selection", "preprocessing", "normalization",
			"testing", "validation", "train test split", "cross validation",
			"accuracy", "precision", "recall", "f1 score", "roc", "auc", "confusion matrix",
			"optimization", "gradient descent", "backpropagation", "loss function",
			"hyperparameter", "tuning", "grid search", "random search", "bayesian optimization"},
		Weak: []string{"educational", "study", "learn", "learning", "knowledge", "skill", "training"},
	},
	"College": {
		Strong: []string{"university", "college", "campus", "dormitory", "dorm", "residence hall",
			"tuition", "fee", "scholarship", "grant", "financial aid", "loan", "student loan",
			"degree", "bachelor", "master", "phd", "doctorate", "major", "minor", "specialization",
			"gpa", "grade point average", "transcript", "diploma", "convocation",
			"alumni", "alumnus", "alumna", "graduate", "commencement", "graduation",
			"fraternity", "sorority", "greek life", "greek organization", "pledge",
			"club", "organization", "student organization", "student group",
			"student government", "senate", "council", "board", "president",
			"registration", "course registration", "add drop", "course schedule",
			"professor", "instructor", "faculty", "staff", "administrator", "dean",
			"campus life", "student life", "residential life", "internship", "placement", "recruiting"},
		Weak: []string{"college", "university", "student", "campus", "academic"},
	},
	"School": {
		Strong: []string{"elementary", "elementary school", "middle school", "high school", "secondary",
			"k-12", "k12", "public school", "private school", "charter school",
			"grade", "grade level", "grade 1", "grade 10", "grade 12",
			"classroom", "class", "period", "lunch period", "recess",
			"teacher", "principal", "staff", "counselor", "nurse", "aide", "administrator",
			"report card", "progress report", "behavior", "discipline", "detention",
			"assignment", "homework", "worksheet", "project", "presentation", "poster",
			"exam", "test", "quiz", "mid-term", "final exam", "board exam",
			"schedule", "timetable", "class schedule", "bell schedule", "calendar",
			"parent", "guardian", "parent teacher conference", "ptc", "pta", "pto",
			"activity", "club", "sports", "athletics", "team", "game", "tournament",
			"field trip", "assembly", "pep rally", "graduation", "commencement",
			"bonafide certificate", "leaving certificate", "transfer certificate", "lc", "tc"},
		Weak: []string{"school", "education", "student", "learning", "teaching"},
	},
	"Company": {
		Strong: []string{"employee", "staff", "team", "department", "division", "unit",
			"project", "initiative", "program", "campaign", "strategy",
			"budget", "budgeting", "forecast", "planning", "deadline", "timeline",
			"product", "product line", "product development", "roadmap", "feature",
			"service", "service offering", "service delivery", "consulting",
			"client", "customer", "vendor", "partner", "stakeholder", "supplier",
			"human resources", "hr", "recruitment", "hiring", "onboarding", "offer letter",
			"payroll", "compensation", "salary", "bonus", "incentive", "appraisal",
			"meeting", "standup", "sync", "all hands", "town hall", "minutes of meeting", "mom",
			"presentation", "pitch", "demo", "prototype", "mockup", "wireframe",
			"quarterly", "q1", "q2", "q3", "q4", "fiscal quarter",
			"annual", "annual report", "earnings", "revenue", "profit",
			"performance", "kpi", "key performance indicator", "okr",
			"review", "performance review", "feedback", "evaluation",
			"office", "workspace", "remote", "hybrid", "wfh", "work from home",
			"company culture", "values", "mission", "vision", "policy",
			"business plan", "business model", "sales", "marketing",
			"statement of work", "sow", "sla", "service level agreement",
			"proposal", "contract", "nda", "non-disclosure"},
		Weak: []string{"company", "work", "business", "job", "employment", "professional"},
	},
	"Healthcare": {
		Strong: []string{"patient", "medical", "medicine", "physician", "doctor", "healthcare",
			"hospital", "clinic", "medical center", "nursing home", "urgent care", "emergency", "icu",
			"diagnosis", "diagnostic", "symptom", "treatment", "therapy", "clinical",
			"prescription", "medication", "pharmaceutical", "drug", "vaccine",
			"disease", "illness", "condition", "disorder", "syndrome",
			"vital signs", "blood pressure", "heart rate", "temperature",
			"surgery", "surgical", "operation", "anesthesia", "recovery",
			"radiology", "x-ray", "ct scan", "mri", "ultrasound", "imaging",
			"laboratory", "lab test", "blood test", "pathology", "biopsy",
			"nursing", "nurse", "registered nurse", "discharge summary", "triage",
			"opd", "outpatient", "inpatient", "admission", "medical history",
			"insurance", "tpa", "claim", "cashless", "mediclaim",
			"dicom", "hl7", "emr", "ehr", "medical record"},
		Weak: []string{"health", "medicine", "doctor", "medical", "care", "hospital"},
	},
	"Legal": {
		Strong: []string{"contract", "agreement", "lease agreement", "rent agreement",
			"clause", "section", "article", "amendment", "addendum",
			"party", "plaintiff", "defendant", "litigant", "attorney", "lawyer",
			"law", "legal", "statute", "regulation", "act", "bill",
			"copyright", "patent", "trademark", "intellectual property", "ip",
			"liability", "indemnity", "insurance", "coverage",
			"court", "lawsuit", "litigation", "legal action", "trial", "hearing",
			"jurisdiction", "venue", "arbitration", "mediation",
			"herein", "hereby", "whereas", "pursuant to", "in accordance with",
			"effective date", "termination", "breach", "default",
			"damages", "remedy", "injunction", "relief",
			"warrant", "warranty", "represent", "covenant",
			"affidavit", "power of attorney", "poa", "notary", "gazette"},
		Weak: []string{"legal", "law", "attorney", "rights", "rule"},
	},
	"Business": {
		Strong: []string{"strategy", "strategic plan", "business model", "value proposition",
			"marketing", "marketing strategy", "advertising", "campaign",
			"sales", "sales strategy", "sales pipeline", "funnel",
			"customer", "customer experience", "crm", "customer retention",
			"market", "market share", "market analysis", "competitive analysis",
			"growth", "growth strategy", "expansion", "scaling",
			"operations", "operational", "supply chain", "logistics",
			"management", "leadership", "executive", "ceo", "cfo", "cto",
			"organization", "organizational structure", "restructuring",
			"planning", "objective", "goal", "milestone", "target",
			"innovation", "disruption", "startup", "venture", "fundraising"},
		Weak: []string{"business", "company", "plan", "goal", "strategy", "market"},
	},
	"ResearchPaper": {
		Strong: []string{"abstract", "introduction", "methodology", "methods", "results", "discussion", "conclusion", "references",
			"research", "study", "analysis", "experiment", "experimental",
			"hypothesis", "hypothesis test", "statistical significance", "p-value",
			"data", "data analysis", "qualitative", "quantitative",
			"literature review", "related work", "citation", "cite", "bibliography",
			"author", "researcher", "academic", "scholar", "affiliation",
			"journal", "journal article", "peer review", "proceedings",
			"conference", "symposium", "workshop",
			"figure", "table", "graph", "chart", "diagram",
			"et al", "doi", "isbn", "issn", "arxiv"},
		Weak: []string{"research", "paper", "academic", "study", "analysis", "thesis"},
	},
	"Documentation": {
		Strong: []string{"## ", "# ", "api", "api documentation", "endpoint",
			"parameter", "parameters", "argument", "return value",
			"response", "response code", "response body", "status code",
			"schema", "json schema", "data model",
			"authentication", "authorization", "oauth", "api key", "token",
			"rest", "restful", "http method", "get", "post", "put", "delete",
			"swagger", "openapi", "raml", "api blueprint",
			"example", "usage example", "code snippet", "curl",
			"guide", "getting started", "quick start", "installation", "setup",
			"tutorial", "walkthrough", "step by step", "how to"},
		Weak: []string{"help", "explain", "guide", "reference", "doc", "manual"},
	},
	"Personal": {
		Strong: []string{"resume", "cv", "curriculum vitae", "biodata", "portfolio",
			"utility bill", "electricity bill", "water bill", "gas bill",
			"credit card statement", "bank statement", "passbook",
			"rent agreement", "lease", "maintenance bill",
			"receipt", "invoice", "warranty card", "guarantee",
			"insurance policy", "premium receipt", "nomination",
			"identity card", "id card", "visiting card",
			"medical report", "prescription", "vaccination certificate"},
		Weak: []string{"personal", "home", "bill", "statement", "receipt"},
	},
	"Government": {
		Strong: []string{"aadhaar", "uidai", "pan card", "income tax", "it department",
			"passport", "visa", "immigration",
			"driving license", "dl", "vehicle registration", "rc",
			"voter id", "election card", "epic",
			"ration card", "domicile", "caste certificate",
			"birth certificate", "death certificate", "marriage certificate",
			"form 16", "itr", "income tax return", "acknowledgement",
			"gazette", "notification", "circular", "gr", "government resolution",
			"affidavit", "stamp paper", "notary"},
		Weak: []string{"government", "govt", "official", "certificate", "id"},
	},
}

// categoryEntry pairs a category name with its scoring keywords. Candidates
// are scored in slice order; on a tie the earliest entry wins.
type categoryEntry struct {
	Name     string
	Keywords []string
}

// categoryKeywordsByDomain scores categories within a chosen domain: text
// occurrence count plus five per keyword appearing in the filename. "Other"
// is the fallback, never scored.
var categoryKeywordsByDomain = map[string][]categoryEntry{
	"Technology": {
		{"UAV", []string{"uav", "drone", "unmanned aerial", "unmanned", "quadcopter", "hexacopter", "flight"}},
		{"Web", []string{"web", "website", "web app", "web application", "web development", "full stack"}},
		{"Database", []string{"database", "sql", "nosql", "mongodb", "postgres", "mysql", "redis"}},
		{"API", []string{"api", "endpoint", "rest", "graphql", "grpc", "swagger", "openapi"}},
		{"DevOps", []string{"docker", "kubernetes", "ci/cd", "jenkins", "terraform", "ansible", "cloud"}},
		{"AI", []string{"artificial intelligence", "ai", "machine learning", "deep learning", "llm", "neural network"}},
		{"Security", []string{"security", "encryption", "ssl", "tls", "auth", "firewall", "cyber", "cipher", "crypto", "aes", "rsa"}},
		{"Mobile", []string{"mobile", "ios", "android", "flutter", "react native", "app"}},
		{"Other", nil},
	},
	"Code": {
		{"Backend", []string{"backend", "server", "api", "database", "express", "django", "flask", "spring", "sql"}},
		{"Frontend", []string{"frontend", "ui", "react", "vue", "angular", "html", "css", "component"}},
		{"Algorithm", []string{"algorithm", "data structure", "sorting", "searching", "graph", "tree"}},
		{"Testing", []string{"test", "unit test", "integration test", "jest", "pytest", "coverage"}},
		{"Other", nil},
	},
	"Finance": {
		{"Accounting", []string{"accounting", "ledger", "audit", "balance sheet", "p&l"}},
		{"Payroll", []string{"payroll", "salary", "wage", "slip", "compensation"}},
		{"Tax", []string{"tax", "gst", "itr", "return", "filing"}},
		{"Investment", []string{"investment", "stock", "portfolio", "mutual fund", "equity"}},
		{"Other", nil},
	},
	"Education": {
		{"Programming", []string{"programming", "python", "java", "code", "development"}},
		{"Mathematics", []string{"math", "algebra", "calculus", "statistics", "geometry"}},
		{"Science", []string{"physics", "chemistry", "biology", "science"}},
		{"DataScience", []string{"data science", "ml", "analysis", "pandas", "numpy"}},
		{"Other", nil},
	},
	"College": {
		{"Admin", []string{"transcript", "degree", "certificate", "bonafide", "fee receipt"}},
		{"Placement", []string{"placement", "internship", "job offer", "recruiting", "campus drive"}},
		{"Academic", []string{"course", "syllabus", "project", "assignment", "thesis"}},
		{"Clubs", []string{"club", "event", "fest", "competition", "workshop"}},
		{"Other", nil},
	},
	"School": {
		{"Admin", []string{"report card", "result", "leaving certificate", "bonafide", "calendar"}},
		{"Academic", []string{"homework", "worksheet", "assignment", "exam", "quiz"}},
		{"Events", []string{"annual day", "sports day", "field trip", "picnic"}},
		{"Other", nil},
	},
	"Company": {
		{"Product", []string{"prd", "product", "requirements", "roadmap", "user story", "backlog"}},
		{"Service", []string{"sow", "proposal", "agreement", "sla", "deliverable", "contract"}},
		{"HR", []string{"offer letter", "appointment letter", "appraisal", "policy", "handbook"}},
		{"Legal", []string{"nda", "non-disclosure", "contract", "partnership"}},
		{"Finance", []string{"invoice", "quote", "po", "purchase order", "budget"}},
		{"Other", nil},
	},
	"Healthcare": {
		{"Clinical", []string{"prescription", "discharge", "opd", "admission", "case paper"}},
		{"LabReport", []string{"report", "test result", "blood", "urine", "pathology"}},
		{"Imaging", []string{"x-ray", "mri", "abdo", "scan", "usg", "sonography"}},
		{"Insurance", []string{"claim", "insurance", "tpa", "approval", "cashless"}},
		{"Other", nil},
	},
	"Personal": {
		{"Identity", []string{"resume", "cv", "biodata", "id proof", "address proof"}},
		{"Bills", []string{"electricity", "gas", "water", "bill", "maintenance"}},
		{"Financial", []string{"bank statement", "passbook", "credit card", "loan"}},
		{"Housing", []string{"rent agreement", "possession", "allotment", "deed"}},
		{"Other", nil},
	},
	"Government": {
		{"ID", []string{"aadhaar", "pan", "passport", "license", "voter"}},
		{"Tax", []string{"itr", "form 16", "income tax", "acknowledgement"}},
		{"Legal", []string{"affidavit", "agreement", "power of attorney", "deed"}},
		{"Other", nil},
	},
	"Legal": {
		{"Contract", []string{"contract", "agreement", "mou", "nda"}},
		{"Property", []string{"lease", "deed", "sale", "rent"}},
		{"Court", []string{"order", "judgment", "petition", "notice"}},
		{"Other", nil},
	},
	"Business": {
		{"Strategy", []string{"strategy", "plan", "deck", "presentation"}},
		{"Marketing", []string{"campaign", "brochure", "flyer", "social media"}},
		{"Sales", []string{"pipeline", "lead", "proposal", "quote"}},
		{"Other", nil},
	},
	"ResearchPaper": {
		{"Other", nil},
	},
	"Documentation": {
		{"Other", nil},
	},
}

// guardrailRule forces a classification when any keyword appears in the text
// or the filename. First matching rule wins; order matters.
type guardrailRule struct {
	Domain   string
	Category string
	Keywords []string
}

// guardrailRules are ordered by specificity and risk of misclassification.
// Identity documents come first.
var guardrailRules = []guardrailRule{
	{"Government", "ID", []string{"aadhaar", "pan card", "passport", "driving license", "voter id", "uidai"}},
	{"Government", "Tax", []string{"form 16", "itr-v", "income tax return", "computation of income"}},
	{"Personal", "Identity", []string{"curriculum vitae", "resume", "biodata"}},
	{"Personal", "Bills", []string{"electricity bill", "gas bill", "credit card statement"}},

	{"Technology", "UAV", []string{"uav", "drone", "quadcopter", "aerial", "hexacopter"}},
	{"Technology", "API", []string{"openapi", "swagger", "graphql", "grpc", "raml", "api gateway", "rest api", "api documentation", "http method"}},
	{"Technology", "DevOps", []string{"docker", "kubernetes", "k8s", "jenkins", "terraform", "ansible", "helm", "github actions", "gitlab ci", "ci/cd"}},

	{"Code", "Frontend", []string{"react", "jsx", "tsx", "nextjs", "<html", "<!doctype", "tailwind", "redux", "vue", "angular"}},
	{"Code", "Backend", []string{"express", "django", "flask", "fastapi", "spring boot", "server", "middleware", "controller"}},

	{"Healthcare", "LabReport", []string{"pathology report", "blood test", "lipid profile", "cbc", "urine analysis"}},
	{"Healthcare", "Clinical", []string{"discharge summary", "opd paper", "prescription", "admission form"}},

	{"School", "Admin", []string{"leaving certificate", "bonafide", "transfer certificate", "result sheet", "report card"}},
	{"College", "Admin", []string{"transcript", "degree certificate", "provisional certificate", "migration certificate"}},

	{"Company", "Product", []string{"product requirements", "prd", "user story", "sprint backlog", "release notes"}},
	{"Company", "Service", []string{"statement of work", "sow", "service level agreement", "sla", "client proposal"}},

	{"Finance", "Tax", []string{"gst", "tax invoice", "tax return"}},
	{"Legal", "Contract", []string{"non-disclosure agreement", "nda", "consulting agreement", "employment agreement"}},
}

// codeExtensions shortcut straight to the Code domain.
var codeExtensions = map[string]bool{
	"py": true, "js": true, "jsx": true, "ts": true, "tsx": true,
	"java": true, "cpp": true, "c": true, "h": true, "hpp": true,
	"cs": true, "go": true, "rs": true, "rb": true, "php": true,
	"swift": true, "kt": true, "scala": true,
	"sh": true, "bash": true, "ps1": true, "bat": true, "cmd": true,
	"sql": true, "r": true, "dart": true, "lua": true,
}

var frontendExtensions = map[string]bool{
	"js": true, "jsx": true, "ts": true, "tsx": true,
	"html": true, "css": true, "scss": true, "sass": true, "vue": true,
}

var backendExtensions = map[string]bool{
	"py": true, "java": true, "go": true, "php": true,
	"rb": true, "rs": true, "cs": true,
}

var docExtensions = map[string]bool{
	"md": true, "rst": true, "adoc": true,
}

// Domains lists the supported domain taxonomy in a stable order.
func Domains() []string {
	return []string{
		"Technology", "Code", "Finance", "Education", "College", "School",
		"Company", "Healthcare", "Legal", "Business", "ResearchPaper",
		"Documentation", "Personal", "Government",
	}
}

// BuiltinCategories returns the builtin category names for a domain in
// scoring order.
func BuiltinCategories(domain string) []string {
	table, ok := categoryKeywordsByDomain[domain]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(table))
	for _, entry := range table {
		names = append(names, entry.Name)
	}
	return names
}

// BuiltinCategoryKeywords returns a copy of the builtin category keyword
// table for a domain.
func BuiltinCategoryKeywords(domain string) map[string][]string {
	table, ok := categoryKeywordsByDomain[domain]
	if !ok {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(table))
	for _, entry := range table {
		out[entry.Name] = append([]string{}, entry.Keywords...)
	}
	return out
}
