package runtime

// systemInstructions seed every chain. They describe the step wire schema.
const systemInstructions = `You are an expert AI assistant with advanced reasoning capabilities. Your task is to provide a detailed, step-by-step explanation of your thought process. For each step:

1. Provide a clear, concise title describing the current reasoning phase.
2. Elaborate on your thought process in the content section.
3. Decide whether to continue reasoning or provide a final answer.

Respond in JSON format, strictly following this structure:
{
    "title": "Step title",
    "content": "Detailed thought process",
    "next_action": "continue or final_answer"
}

Make sure every response is valid JSON and includes all of the fields above.`

// assistantAcknowledgment is the seeded assistant turn that commits the model to the protocol.
const assistantAcknowledgment = "Thank you! I will now think step by step following my instructions, starting at the beginning after decomposing the problem."

// finalAnswerRequest is appended as a user turn before the final request.
const finalAnswerRequest = "Please provide the final answer based on your reasoning above."
