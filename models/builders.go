package models

import (
	"github.com/sirupsen/logrus"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/audio"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/fusion"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/classifier/text"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/config"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/features"
)

// FromConfig returns builders that load the ONNX models described by cfg.
func FromConfig(cfg *config.Root, log logrus.FieldLogger) Builders {
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := cfg.Models
	return Builders{
		Text: func() *text.Classifier {
			return text.Load(text.Options{
				ORTLibrary:    m.ORTLibrary,
				ModelPath:     m.Text.ModelPath,
				TokenizerPath: m.Text.TokenizerPath,
				MaxTokens:     m.Text.MaxTokens,
				InputNames:    m.Text.InputNames,
				OutputName:    m.Text.OutputName,
			}, log)
		},
		Audio: func() *audio.Classifier {
			return audio.Load(audio.Options{
				ORTLibrary: m.ORTLibrary,
				ModelPath:  m.Audio.ModelPath,
				InputName:  m.Audio.InputName,
				OutputName: m.Audio.OutputName,
				Features: features.Config{
					SampleRate: cfg.Audio.SampleRate,
					NumMFCC:    cfg.Audio.NumMFCC,
					FFTSize:    cfg.Audio.FFTSize,
					HopLength:  cfg.Audio.HopLength,
					NumMels:    cfg.Audio.NumMels,
				},
			}, log)
		},
		Fusion: func() *fusion.Classifier {
			return fusion.New(m.Fusion.TextWeight, m.Fusion.AudioWeight)
		},
	}
}
