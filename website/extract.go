package website

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"leadharvest/models"
)

var (
	emailPattern = regexp.MustCompile(`(?i)[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// Turkish phone numbers, with or without the +90/0 prefix.
	phonePattern = regexp.MustCompile(`(?:\+90|0)?[\s.-]?\d{3}[\s.-]?\d{3}[\s.-]?\d{2}[\s.-]?\d{2}`)

	phoneSeparators = regexp.MustCompile(`[\s.-]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	contentClass    = regexp.MustCompile(`(?i)content|main|body`)
	navClass        = regexp.MustCompile(`(?i)nav|menu|navigation`)
)

// Placeholder domains and static-asset extensions that show up in markup but
// are never real contact addresses.
var emailDenylist = []string{
	"example.com", "domain.com", "email.com", "test.com",
	".png", ".jpg", ".gif", ".css", ".js",
}

var socialDomains = map[string]string{
	"facebook.com":  "facebook",
	"fb.com":        "facebook",
	"twitter.com":   "twitter",
	"x.com":         "twitter",
	"instagram.com": "instagram",
	"linkedin.com":  "linkedin",
	"youtube.com":   "youtube",
	"tiktok.com":    "tiktok",
	"pinterest.com": "pinterest",
	"whatsapp.com":  "whatsapp",
}

const (
	maxTitleLen       = 500
	maxMetaLen        = 1000
	maxHeadingLen     = 200
	maxHeadingsPerTag = 20
	minParagraphLen   = 30
	maxParagraphLen   = 1000
	maxParagraphs     = 50
	maxNavItems       = 30
	maxNavTextLen     = 50
	maxFooterLen      = 2000
	minPhoneDigits    = 10
	maxPhones         = 10
	maxFullTextLen    = 50000
)

// PageContent is everything extracted from one HTML document. All fields are
// best-effort: malformed markup yields empty values, never a failure.
type PageContent struct {
	Emails          []string
	Title           string
	MetaDescription string
	MetaKeywords    string
	Headings        map[string][]string
	Paragraphs      []string
	Navigation      []models.NavLink
	Footer          string
	Phones          []string
	Social          map[string]string
	FullText        string
}

// ExtractContent runs every extraction over a parsed document and its raw
// markup. Extractions that prune the DOM work on clones so they cannot
// starve each other.
func ExtractContent(doc *goquery.Document, rawHTML string) *PageContent {
	return &PageContent{
		Emails:          ExtractEmails(doc, rawHTML),
		Title:           ExtractTitle(doc),
		MetaDescription: ExtractMeta(doc, "description"),
		MetaKeywords:    ExtractMeta(doc, "keywords"),
		Headings:        ExtractHeadings(doc),
		Paragraphs:      ExtractParagraphs(doc),
		Navigation:      ExtractNavigation(doc),
		Footer:          ExtractFooter(doc),
		Phones:          ExtractPhones(rawHTML),
		Social:          ExtractSocialLinks(doc),
		FullText:        ExtractFullText(doc),
	}
}

// ExtractEmails scans the raw markup (catches obfuscated addresses) and
// mailto: anchors, filters out placeholder domains, and returns a sorted
// unique list in lower case.
func ExtractEmails(doc *goquery.Document, rawHTML string) []string {
	seen := make(map[string]bool)

	for _, match := range emailPattern.FindAllString(rawHTML, -1) {
		email := strings.ToLower(match)
		if !deniedEmail(email) {
			seen[email] = true
		}
	}

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.HasPrefix(href, "mailto:") {
			return
		}
		email := strings.ToLower(strings.SplitN(strings.TrimPrefix(href, "mailto:"), "?", 2)[0])
		if emailPattern.MatchString(email) && !deniedEmail(email) {
			seen[email] = true
		}
	})

	emails := make([]string, 0, len(seen))
	for email := range seen {
		emails = append(emails, email)
	}
	sort.Strings(emails)
	return emails
}

func deniedEmail(email string) bool {
	for _, bad := range emailDenylist {
		if strings.Contains(email, bad) {
			return true
		}
	}
	return false
}

// ExtractTitle returns the first <title> text.
func ExtractTitle(doc *goquery.Document) string {
	return truncateRunes(strings.TrimSpace(doc.Find("title").First().Text()), maxTitleLen)
}

// ExtractMeta returns the content of <meta name=...>, falling back to the
// matching og: property tag.
func ExtractMeta(doc *goquery.Document, name string) string {
	if content, ok := doc.Find(`meta[name="` + name + `"]`).First().Attr("content"); ok {
		return truncateRunes(content, maxMetaLen)
	}
	if content, ok := doc.Find(`meta[property="og:` + name + `"]`).First().Attr("content"); ok {
		return truncateRunes(content, maxMetaLen)
	}
	return ""
}

// ExtractHeadings collects heading texts by level, skipping near-empty ones.
func ExtractHeadings(doc *goquery.Document) map[string][]string {
	headings := make(map[string][]string)
	for _, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		var found []string
		doc.Find(tag).Each(func(i int, s *goquery.Selection) {
			if len(found) >= maxHeadingsPerTag {
				return
			}
			text := strings.TrimSpace(s.Text())
			if len([]rune(text)) > 1 {
				found = append(found, truncateRunes(text, maxHeadingLen))
			}
		})
		if len(found) > 0 {
			headings[tag] = found
		}
	}
	return headings
}

// ExtractParagraphs pulls main-content paragraphs, preferring a detected
// <main>/<article>/content-class region and ignoring boilerplate chrome.
func ExtractParagraphs(doc *goquery.Document) []string {
	clone := goquery.CloneDocument(doc)
	clone.Find("script, style, nav, header, footer, aside").Remove()

	scope := clone.Selection
	if main := clone.Find("main").First(); main.Length() > 0 {
		scope = main
	} else if article := clone.Find("article").First(); article.Length() > 0 {
		scope = article
	} else if div := firstMatchingClass(clone, "div", contentClass); div != nil {
		scope = div
	}

	var paragraphs []string
	scope.Find("p").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if len([]rune(text)) > minParagraphLen {
			paragraphs = append(paragraphs, truncateRunes(text, maxParagraphLen))
		}
		return len(paragraphs) < maxParagraphs
	})
	return paragraphs
}

// ExtractNavigation pulls menu links from a nav-like element. Long link texts
// are presumed to be body copy, not menu items.
func ExtractNavigation(doc *goquery.Document) []models.NavLink {
	nav := doc.Find("nav").First()
	if nav.Length() == 0 {
		if el := firstMatchingClass(doc, "*", navClass); el != nil {
			nav = el
		} else {
			return nil
		}
	}

	var items []models.NavLink
	nav.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text != "" && len([]rune(text)) < maxNavTextLen {
			href, _ := s.Attr("href")
			items = append(items, models.NavLink{Text: text, Href: href})
		}
		return len(items) < maxNavItems
	})
	return items
}

// ExtractFooter returns the text of the first <footer>, if any.
func ExtractFooter(doc *goquery.Document) string {
	footer := doc.Find("footer").First()
	if footer.Length() == 0 {
		return ""
	}
	text := strings.TrimSpace(whitespaceRun.ReplaceAllString(footer.Text(), " "))
	return truncateRunes(text, maxFooterLen)
}

// ExtractPhones returns normalized digit-only phone numbers found in the raw
// markup.
func ExtractPhones(rawHTML string) []string {
	seen := make(map[string]bool)
	for _, match := range phonePattern.FindAllString(rawHTML, -1) {
		cleaned := phoneSeparators.ReplaceAllString(match, "")
		if len(cleaned) >= minPhoneDigits {
			seen[cleaned] = true
		}
	}

	phones := make([]string, 0, len(seen))
	for phone := range seen {
		phones = append(phones, phone)
	}
	sort.Strings(phones)
	if len(phones) > maxPhones {
		phones = phones[:maxPhones]
	}
	return phones
}

// ExtractSocialLinks maps known social platforms to the first link seen for
// each. Hostnames are matched by suffix with a leading www. stripped, so
// subdomains count but lookalike domains do not.
func ExtractSocialLinks(doc *goquery.Document) map[string]string {
	social := make(map[string]string)
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		for domain, name := range socialDomains {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				if _, ok := social[name]; !ok {
					social[name] = href
				}
				break
			}
		}
	})
	return social
}

// ExtractFullText returns the whole document's visible text with scripts and
// embedded frames stripped and whitespace collapsed.
func ExtractFullText(doc *goquery.Document) string {
	clone := goquery.CloneDocument(doc)
	clone.Find("script, style, noscript, iframe").Remove()

	text := strings.TrimSpace(whitespaceRun.ReplaceAllString(clone.Text(), " "))
	return truncateRunes(text, maxFullTextLen)
}

// firstMatchingClass finds the first element of the given tag whose class
// attribute matches re, or nil.
func firstMatchingClass(doc *goquery.Document, tag string, re *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	doc.Find(tag + "[class]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if re.MatchString(class) {
			found = s
			return false
		}
		return true
	})
	return found
}

// truncateRunes caps s at n runes without splitting a multibyte character.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
