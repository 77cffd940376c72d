// Package main is the entry point for the school service.
//
// @title          School API
// @version        1.0
// @description    Student registry: bootstraps its schema from the mapped entities, then serves the student CRUD and health API.
// @host           localhost:8080
// @BasePath       /
// @schemes        http
package main

func main() {
	Execute()
}
