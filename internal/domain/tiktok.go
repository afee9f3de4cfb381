package domain

// PageMetadata holds the head metadata scraped from a rendered web page.
type PageMetadata struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	Keywords      string `json:"keywords"`
	OGTitle       string `json:"ogTitle"`
	OGDescription string `json:"ogDescription"`
	Canonical     string `json:"canonical"`
	PageURL       string `json:"pageUrl"`
	Author        string `json:"author"`
}

// TikTokMetadata is the payload stored with a TikTok vector.
type TikTokMetadata struct {
	OriginalURL   string `json:"original_url"`
	UserContext   string `json:"userContext"`
	UserEmail     string `json:"userEmail"`
	Author        string `json:"author"`
	OGDescription string `json:"ogDescription"`
	Keywords      string `json:"keywords"`
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Date          string `json:"date"`
}
