package relevance

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "been": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "he": true, "in": true, "is": true, "it": true, "its": true,
	"of": true, "on": true, "or": true, "that": true, "the": true, "to": true,
	"was": true, "were": true, "will": true, "with": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true,
	"must": true, "shall": true, "do": true, "does": true, "did": true,
	"have": true, "had": true, "this": true, "these": true, "those": true,
	"they": true, "them": true, "their": true, "his": true, "her": true,
	"she": true, "we": true, "you": true, "your": true, "our": true, "us": true,
	"me": true, "my": true, "i": true, "not": true, "no": true, "so": true,
	"if": true, "than": true, "then": true, "there": true, "what": true,
	"which": true, "who": true, "when": true, "where": true, "how": true,
	"all": true, "any": true, "each": true, "into": true, "about": true,
}
