// Command qualgate generates quality checklists for a change, validates
// them, routes manual reviews and escalates blocked items.
package main

func main() {
	Execute()
}
