package enums

type ClubCategory string

const (
	ClubCategoryTechnology  ClubCategory = "Technology"
	ClubCategorySports      ClubCategory = "Sports"
	ClubCategoryArts        ClubCategory = "Arts"
	ClubCategoryMusic       ClubCategory = "Music"
	ClubCategoryLiterature  ClubCategory = "Literature"
	ClubCategoryGaming      ClubCategory = "Gaming"
	ClubCategoryPhotography ClubCategory = "Photography"
	ClubCategoryScience     ClubCategory = "Science"
	ClubCategoryDrama       ClubCategory = "Drama"
	ClubCategoryBusiness    ClubCategory = "Business"
	ClubCategoryTravel      ClubCategory = "Travel"
)

// ClubCategories lists the browsable categories in display order.
var ClubCategories = []ClubCategory{
	ClubCategoryTechnology,
	ClubCategorySports,
	ClubCategoryArts,
	ClubCategoryMusic,
	ClubCategoryLiterature,
	ClubCategoryGaming,
	ClubCategoryPhotography,
	ClubCategoryScience,
	ClubCategoryDrama,
	ClubCategoryBusiness,
	ClubCategoryTravel,
}

func (c ClubCategory) IsValid() bool { return oneOf(c, ClubCategories) }

func ParseClubCategory(value string) (ClubCategory, error) {
	return parse("club category", value, ClubCategories)
}
