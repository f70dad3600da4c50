package textproc

import "github.com/zombar/truthlens/internal/models"

func modelsInput(title, description, body string) models.ClassificationInput {
	return models.ClassificationInput{Title: title, Description: description, Body: body}
}
