package main

import "graded-cards-scraper/cmd"

func main() {
	cmd.Execute()
}
