package api

import "github.com/starford/lifeos/internal/store"

func testTask(title, date string) store.TaskInput {
	return store.TaskInput{Title: title, Date: date}
}

func testFocus(title, description string) store.FocusInput {
	return store.FocusInput{Month: "2026-03", Title: title, Description: description}
}
