package main

import "github.com/charmbracelet/lipgloss"

var (
	stylePass   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleAccent = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

func renderPass(s string) string   { return stylePass.Render(s) }
func renderWarn(s string) string   { return styleWarn.Render(s) }
func renderAccent(s string) string { return styleAccent.Render(s) }
func renderHeader(s string) string { return styleHeader.Render(s) }
func renderDim(s string) string    { return styleDim.Render(s) }
