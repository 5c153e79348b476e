package flow

import "strings"

// Callback tokens. Menu tokens are fixed strings; record-scoped actions embed
// the record identifier after a prefix.
const (
	tokenMainMenu       = "menu"
	tokenLocationMenu   = "location_menu"
	tokenActivitiesMenu = "activities_menu"

	tokenSeniorsMenu  = "category_seniors"
	tokenSearchCentre = "search_centre"
	tokenEnterPostal  = "enter_postal"

	tokenPostalSeniorsMenu = "postal_seniors"

	tokenActNearMe     = "act_near_me"
	tokenActSearchType = "act_search_type"
	tokenActByPostal   = "act_by_postal"

	prefixCategory     = "category_"
	prefixPostal       = "postal_"
	prefixSeeActivity  = "see_activity_"
	prefixChooseCentre = "act_choose_centre_"
	prefixDownloadPDF  = "act_download_pdf_"
)

// cutPrefix returns the token's payload after prefix and whether it matched.
func cutPrefix(token, prefix string) (string, bool) {
	if !strings.HasPrefix(token, prefix) {
		return "", false
	}
	return token[len(prefix):], true
}
