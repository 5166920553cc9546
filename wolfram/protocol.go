package wolfram

// Wire messages for the Wolfram Alpha gateway WebSocket protocol. All frames
// are JSON text; the gateway keys dispatch on the "type" field.

// initMessage opens a session. The gateway answers with type "ready".
type initMessage struct {
	Category             string   `json:"category"`
	Type                 string   `json:"type"`
	Lang                 string   `json:"lang"`
	WAProS               string   `json:"waProS"`
	WAProT               string   `json:"waProT"`
	WAProU               string   `json:"waProU"`
	Exp                  int64    `json:"exp"`
	DisplayDebuggingInfo bool     `json:"displayDebuggingInfo"`
	Messages             []string `json:"messages"`
}

// newQueryMessage submits one query. Input is the base64-encoded JSON
// envelope [{"t":0,"v":<query>}]; the locale and theme parameters are fixed.
type newQueryMessage struct {
	Type                 string         `json:"type"`
	LocationID           string         `json:"locationId"`
	Language             string         `json:"language"`
	DisplayDebuggingInfo bool           `json:"displayDebuggingInfo"`
	YellowIsError        bool           `json:"yellowIsError"`
	RequestSidebarAd     bool           `json:"requestSidebarAd"`
	Category             string         `json:"category"`
	Input                string         `json:"input"`
	I2D                  bool           `json:"i2d"`
	Assumption           []string       `json:"assumption"`
	APIParams            map[string]any `json:"apiParams"`
	File                 *string        `json:"file"`
	Theme                string         `json:"theme"`
}

// serverMessage is the superset of gateway responses we care about:
// "ready", "pods" (result batches), "queryCompleted".
type serverMessage struct {
	Type           string   `json:"type"`
	Pods           []pod    `json:"pods"`
	RelatedQueries []string `json:"relatedQueries"`
}

type pod struct {
	Title   string   `json:"title"`
	Subpods []subpod `json:"subpods"`
}

type subpod struct {
	Title     string `json:"title"`
	Plaintext string `json:"plaintext"`
	MInput    string `json:"minput"`
	MOutput   string `json:"moutput"`
	Img       *image `json:"img"`
}

type image struct {
	Src         string `json:"src"`
	Alt         string `json:"alt"`
	Title       string `json:"title"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Data        string `json:"data"`
	ContentType string `json:"contenttype"`
}

// Result is one parsed result section (pod). Field values are merged across
// the pod's subpods, last non-empty wins. A Result carrying only
// RelatedQueries is valid: it holds a top-level related-queries payload.
type Result struct {
	Title          string   `json:"title,omitempty"`
	Plaintext      string   `json:"plaintext,omitempty"`
	MInput         string   `json:"minput,omitempty"`
	MOutput        string   `json:"moutput,omitempty"`
	ImgBase64      string   `json:"img_base64,omitempty"`
	ImgContentType string   `json:"img_contenttype,omitempty"`
	RelatedQueries []string `json:"related_queries,omitempty"`
}
