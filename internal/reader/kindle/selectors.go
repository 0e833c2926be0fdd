package kindle

import "time"

const (
	DefaultBaseURL = "https://read.amazon.com"
	ReaderHost     = "read.amazon.com"
	signInPath     = "/ap/signin"
)

// DOM selectors for the Kindle Cloud Reader.
const (
	selPageImage    = `#kr-renderer .kg-full-page-img img`
	selFooter       = `ion-title[item-i-d="reader-footer-title"] .text-div`
	selNext         = `button#kr-chevron-right`
	selTOCButton    = `ion-button[item-i-d="top_menu_table_of_contents"]`
	selTOCRows      = `ion-list ion-item.toc-item`
	selTOCRowButton = `button.toc-item-button`
	selSettings     = `ion-button[item-i-d="top_menu_reader_settings"]`
	selFontEmber    = `#AmazonEmber`
	selSingleColumn = `span[aria-label="Single Column"]`
	selAlertButtons = `ion-alert button`
	selTopChrome    = `.top-chrome`
	selHeader       = `#reader-header`
	selNavMenu      = `ion-button[item-i-d="top_menu_navigation_menu"]`
	selListItems    = `ion-item[role="listitem"]`
	selGoToInput    = `ion-modal input[placeholder="page number"]`
	selGoToButton   = `ion-modal ion-button[item-i-d="go-to-modal-go-button"]`
	selEmail        = `input[type="email"]`
	selPassword     = `input[type="password"]`
	selSubmit       = `input[type="submit"]`
)

// UI pauses the reader needs between actions.
const (
	settingsOpenDelay  = 500 * time.Millisecond
	settingsCloseDelay = 1000 * time.Millisecond
	tocOpenDelay       = 1000 * time.Millisecond
	tocEntryDelay      = 250 * time.Millisecond
	menuDelay          = 1000 * time.Millisecond
	hoverDelay         = 200 * time.Millisecond
	nextClickTimeout   = 1 * time.Second
)
