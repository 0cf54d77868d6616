package domain

// Tutorial is a step-by-step guide for a registration workflow in one country.
type Tutorial struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Country     string         `json:"country"`
	MainURL     string         `json:"main_url"`
	Steps       []TutorialStep `json:"steps"`
}

// TutorialStep is one screen of a tutorial, ordered by StepNumber.
type TutorialStep struct {
	ID              int64  `json:"id"`
	TutorialID      int64  `json:"tutorial_id"`
	StepNumber      int    `json:"step_number"`
	StepTitle       string `json:"step_title"`
	StepDescription string `json:"step_description"`
	StepImageURL    string `json:"step_image_url"`
}

// CreateTutorial is the input for adding a tutorial with its steps.
type CreateTutorial struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Country     string               `json:"country"`
	MainURL     string               `json:"main_url"`
	Steps       []CreateTutorialStep `json:"steps"`
}

// CreateTutorialStep is one step of a CreateTutorial.
type CreateTutorialStep struct {
	StepNumber      int    `json:"step_number"`
	StepTitle       string `json:"step_title"`
	StepDescription string `json:"step_description"`
	StepImageURL    string `json:"step_image_url"`
}
