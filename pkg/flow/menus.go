package flow

import (
	"nearbybot/pkg/chat"
	"nearbybot/pkg/model"
)

const welcomeText = `Welcome to the Nearby Bot! 👋

Use the menu below to get started:

📍 Location – Find the nearest community centres.
📅 Activities – Browse or search upcoming activities and programmes by centre, type, or location.`

func mainMenuKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("📍 Location", tokenLocationMenu),
		chat.Row("📅 Activities", tokenActivitiesMenu),
	}
}

func locationMenuKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("🏠 Families", prefixCategory+string(model.CategoryFamilies)),
		chat.Row("🧒 Children", prefixCategory+string(model.CategoryChildren)),
		chat.Row("👵 Seniors", tokenSeniorsMenu),
		chat.Row("🚫 Anti-Violence", prefixCategory+string(model.CategoryAntiViolence)),
		chat.Row("🧠 Mental Health", prefixCategory+string(model.CategoryMentalHealth)),
		chat.Row("🤝 Caregiving", prefixCategory+string(model.CategoryCaregiving)),
		chat.Row("🔍 Search by Centre Name", tokenSearchCentre),
		chat.Row("📮 Enter Postal Code", tokenEnterPostal),
	}
}

func seniorsMenuKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("🧘 Active Ageing Centre", prefixCategory+string(model.CategorySeniorsActive)),
		chat.Row("🍱 Community Kitchen", prefixCategory+string(model.CategorySeniorsKitchen)),
		chat.Row("🏠 GoodLife at Home", prefixCategory+string(model.CategorySeniorsHome)),
		chat.Row("🔄 Back to Categories", tokenLocationMenu),
	}
}

func postalCategoryKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("🏠 Families", prefixPostal+string(model.CategoryFamilies)),
		chat.Row("🧒 Children", prefixPostal+string(model.CategoryChildren)),
		chat.Row("👵 Seniors", tokenPostalSeniorsMenu),
		chat.Row("🚫 Anti-Violence", prefixPostal+string(model.CategoryAntiViolence)),
		chat.Row("🧠 Mental Health", prefixPostal+string(model.CategoryMentalHealth)),
		chat.Row("🤝 Caregiving", prefixPostal+string(model.CategoryCaregiving)),
		chat.Row("🔙 Back to Categories", tokenLocationMenu),
		chat.Row("🏠 Main Menu", tokenMainMenu),
	}
}

func postalSeniorsKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("🧓 Active Ageing Centre", prefixPostal+string(model.CategorySeniorsActive)),
		chat.Row("🍳 Community Kitchen", prefixPostal+string(model.CategorySeniorsKitchen)),
		chat.Row("🏠 GoodLife at Home", prefixPostal+string(model.CategorySeniorsHome)),
		chat.Row("🔙 Back", tokenEnterPostal),
	}
}

func activitiesMenuKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("📍 Show activities near me", tokenActNearMe),
		chat.Row("🔎 Search by activity type", tokenActSearchType),
		chat.Row("🏢 Enter postal code (by centre)", tokenActByPostal),
		chat.Row("🔙 Back to Menu", tokenMainMenu),
	}
}

// navigation keyboards shown after result sets

func backToCategoriesKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("🔙 Back to Menu", tokenMainMenu),
		chat.Row("🔄 Back to Categories", tokenLocationMenu),
	}
}

func afterCentreSearchKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("🔎 New Search", tokenSearchCentre),
		chat.Row("📅 Activities Menu", tokenActivitiesMenu),
		chat.Row("🏠 Main Menu", tokenMainMenu),
		chat.Row("🔄 Back to Categories", tokenLocationMenu),
	}
}

func afterPostalKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("🔎 New Postal Code", tokenEnterPostal),
		chat.Row("📅 Activities Menu", tokenActivitiesMenu),
		chat.Row("🏠 Main Menu", tokenMainMenu),
		chat.Row("🔄 Back to Categories", tokenLocationMenu),
	}
}

func afterKeywordSearchKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("🔎 New Search", tokenActSearchType),
		chat.Row("🏠 Main Menu", tokenMainMenu),
		chat.Row("🔙 Back To Activities Menu", tokenActivitiesMenu),
	}
}

func afterActivitiesPostalKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("📍 New Location / Postal (by centre)", tokenActByPostal),
		chat.Row("🏠 Main Menu", tokenMainMenu),
		chat.Row("🔙 Back To Activities Menu", tokenActivitiesMenu),
	}
}

func afterNearMeKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("📍 New Location", tokenActNearMe),
		chat.Row("🏠 Main Menu", tokenMainMenu),
		chat.Row("🔙 Back To Activities Menu", tokenActivitiesMenu),
	}
}

func afterCentreActivitiesKeyboard() chat.Keyboard {
	return chat.Keyboard{
		chat.Row("🔄 Back to Categories", tokenLocationMenu),
		chat.Row("🏠 Main Menu", tokenMainMenu),
	}
}

func downloadKeyboard(centreID string) chat.Keyboard {
	return chat.Keyboard{
		chat.Row("⬇️ Download PDF", prefixDownloadPDF+centreID),
		chat.Row("🔎 New Postal Code (by centre)", tokenActByPostal),
		chat.Row("🔙 Back To Activities Menu", tokenActivitiesMenu),
	}
}

func centreListKeyboard(candidates []model.RankedCentre) chat.Keyboard {
	kb := make(chat.Keyboard, 0, len(candidates))
	for _, rc := range candidates {
		kb = append(kb, chat.Row(rc.Centre.Name, prefixChooseCentre+rc.Centre.ID))
	}
	return kb
}
