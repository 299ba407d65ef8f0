package adapter

import (
	"testing"

	"github.com/m-mizutani/gt"
)

func TestParseExtraction(t *testing.T) {
	raw := `{"entities":[{"name":"OpenAI","type":"organization"}],"relations":[]}`
	ext, err := parseExtraction(raw)
	gt.NoError(t, err)
	gt.Equal(t, len(ext.Entities), 1)
	gt.Equal(t, ext.Entities[0].Name, "OpenAI")
	gt.Equal(t, ext.Entities[0].Type, "organization")
}

func TestParseExtractionCodeFence(t *testing.T) {
	raw := "```json\n" +
		`{"entities":[{"name":"Go","type":"technology"}],` +
		`"relations":[{"source":"Google","source_type":"organization","target":"Go","target_type":"technology","type":"released"}]}` +
		"\n```"
	ext, err := parseExtraction(raw)
	gt.NoError(t, err)
	gt.Equal(t, len(ext.Entities), 1)
	gt.Equal(t, len(ext.Relations), 1)
	gt.Equal(t, ext.Relations[0].Type, "released")
}

func TestParseExtractionBareFence(t *testing.T) {
	raw := "```\n{\"entities\":[],\"relations\":[]}\n```"
	ext, err := parseExtraction(raw)
	gt.NoError(t, err)
	gt.Equal(t, len(ext.Entities), 0)
}

func TestParseExtractionInvalid(t *testing.T) {
	_, err := parseExtraction("the text mentions OpenAI and Go")
	gt.Error(t, err)
}

func TestClip(t *testing.T) {
	gt.Equal(t, clip("short", 10), "short")
	gt.Equal(t, clip("0123456789abc", 10), "0123456789")
}

func TestBuildExtractionPrompt(t *testing.T) {
	prompt := buildExtractionPrompt("some article text")
	gt.S(t, prompt).Contains("some article text")
	gt.S(t, prompt).Contains("entities")
}
