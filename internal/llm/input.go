package llm

import "encoding/json"

// serializeInput deterministically serializes structured input under a
// fixed header, mirroring the original client's
// "{prompt}\n\n输入内容：\n{json}" framing (translated into an
// English-language, Go-idiomatic equivalent rather than carried over
// verbatim).
func serializeInput(prompt string, input any) (string, error) {
	if input == nil {
		return prompt, nil
	}
	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", err
	}
	return prompt + "\n\nInput:\n" + string(data), nil
}
